package application

import (
	"context"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
)

// fakeSagaRepository is a minimal in-memory domain.SagaRepository. No
// mockery-generated mocks package was retrieved for this module, so the
// coordinator's use cases are exercised against a small hand-written fake
// rather than a generated one.
type fakeSagaRepository struct {
	byOrderID map[models.ID]*domain.Saga
	byID      map[models.ID]*domain.Saga

	createErr error
	saveErr   error
	findErr   error
	deleteErr error

	saveCount int
}

func newFakeSagaRepository() *fakeSagaRepository {
	return &fakeSagaRepository{
		byOrderID: make(map[models.ID]*domain.Saga),
		byID:      make(map[models.ID]*domain.Saga),
	}
}

func (f *fakeSagaRepository) Create(ctx context.Context, saga *domain.Saga) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byOrderID[saga.OrderID]; exists {
		return apperrors.AlreadyExists("saga already exists for order", nil)
	}
	f.byOrderID[saga.OrderID] = saga
	f.byID[saga.ID] = saga
	return nil
}

func (f *fakeSagaRepository) FindByID(ctx context.Context, id models.ID) (*domain.Saga, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byID[id], nil
}

func (f *fakeSagaRepository) FindByOrderID(ctx context.Context, orderID models.ID) (*domain.Saga, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byOrderID[orderID], nil
}

func (f *fakeSagaRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Saga, error) {
	var out []*domain.Saga
	for _, s := range f.byOrderID {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSagaRepository) Save(ctx context.Context, saga *domain.Saga) error {
	f.saveCount++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.byOrderID[saga.OrderID] = saga
	f.byID[saga.ID] = saga
	return nil
}

func (f *fakeSagaRepository) Delete(ctx context.Context, saga *domain.Saga) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.byOrderID, saga.OrderID)
	delete(f.byID, saga.ID)
	return nil
}

func (f *fakeSagaRepository) FindStuck(ctx context.Context, statuses []domain.SagaStatus, olderThan time.Time) ([]*domain.Saga, error) {
	var out []*domain.Saga
	for _, s := range f.byOrderID {
		for _, st := range statuses {
			if s.Status == st {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSagaRepository) CountByStatus(ctx context.Context, status domain.SagaStatus) (int64, error) {
	var n int64
	for _, s := range f.byOrderID {
		if s.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeSagaRepository) CountByStatusIn(ctx context.Context, statuses []domain.SagaStatus) (int64, error) {
	var n int64
	for _, s := range f.byOrderID {
		for _, st := range statuses {
			if s.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

func (f *fakeSagaRepository) CountStuck(ctx context.Context, statuses []domain.SagaStatus, olderThan time.Time) (int64, error) {
	return f.CountByStatusIn(ctx, statuses)
}

// fakePublisher records every published batch; optionally fails once.
type fakePublisher struct {
	published [][]*events.Event
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, evts)
	return nil
}

// fakeEventLog records what it was asked to log, never errors.
type fakeEventLog struct {
	entries []ProcessingStatus
}

func (f *fakeEventLog) Record(ctx context.Context, sagaID models.ID, eventType string, payload []byte, correlationID models.ID, status ProcessingStatus) error {
	f.entries = append(f.entries, status)
	return nil
}

func newTestCoordinator(repo *fakeSagaRepository, pub *fakePublisher, log *fakeEventLog) *Coordinator {
	return NewCoordinator(repo, pub, log, nil, nil, 3)
}
