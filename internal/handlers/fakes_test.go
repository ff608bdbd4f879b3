package handlers

import (
	"context"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/application"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
)

// stubSagaRepository is a minimal in-memory domain.SagaRepository used to
// exercise the event ingress dispatch without a database.
type stubSagaRepository struct {
	byOrderID map[models.ID]*domain.Saga
	byID      map[models.ID]*domain.Saga
}

func newStubSagaRepository() *stubSagaRepository {
	return &stubSagaRepository{
		byOrderID: make(map[models.ID]*domain.Saga),
		byID:      make(map[models.ID]*domain.Saga),
	}
}

func (s *stubSagaRepository) Create(ctx context.Context, saga *domain.Saga) error {
	s.byOrderID[saga.OrderID] = saga
	s.byID[saga.ID] = saga
	return nil
}

func (s *stubSagaRepository) FindByID(ctx context.Context, id models.ID) (*domain.Saga, error) {
	return s.byID[id], nil
}

func (s *stubSagaRepository) FindByOrderID(ctx context.Context, orderID models.ID) (*domain.Saga, error) {
	return s.byOrderID[orderID], nil
}

func (s *stubSagaRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Saga, error) {
	var out []*domain.Saga
	for _, saga := range s.byOrderID {
		out = append(out, saga)
	}
	return out, nil
}

func (s *stubSagaRepository) Save(ctx context.Context, saga *domain.Saga) error {
	s.byOrderID[saga.OrderID] = saga
	s.byID[saga.ID] = saga
	return nil
}

func (s *stubSagaRepository) Delete(ctx context.Context, saga *domain.Saga) error {
	delete(s.byOrderID, saga.OrderID)
	delete(s.byID, saga.ID)
	return nil
}

func (s *stubSagaRepository) FindStuck(ctx context.Context, statuses []domain.SagaStatus, olderThan time.Time) ([]*domain.Saga, error) {
	return nil, nil
}

func (s *stubSagaRepository) CountByStatus(ctx context.Context, status domain.SagaStatus) (int64, error) {
	var n int64
	for _, saga := range s.byOrderID {
		if saga.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *stubSagaRepository) CountByStatusIn(ctx context.Context, statuses []domain.SagaStatus) (int64, error) {
	var n int64
	for _, saga := range s.byOrderID {
		for _, st := range statuses {
			if saga.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

func (s *stubSagaRepository) CountStuck(ctx context.Context, statuses []domain.SagaStatus, olderThan time.Time) (int64, error) {
	return s.CountByStatusIn(ctx, statuses)
}

type stubPublisher struct{}

func (stubPublisher) Publish(ctx context.Context, evts ...*events.Event) error { return nil }

type stubEventLog struct{}

func (stubEventLog) Record(ctx context.Context, sagaID models.ID, eventType string, payload []byte, correlationID models.ID, status application.ProcessingStatus) error {
	return nil
}
