package application

import (
	"context"
	"errors"
	"testing"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompensate(t *testing.T) {
	t.Run("leaves the saga FAILED when publishing the undo commands errors", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSagaAtInventory(t, repo)
		pub := &fakePublisher{err: errors.New("broker unavailable")}
		c := newTestCoordinator(repo, pub, &fakeEventLog{})

		err := c.compensate(context.Background(), saga, "inventory reservation failed")
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryFatalPublish))

		reloaded := repo.byOrderID[saga.OrderID]
		assert.Equal(t, domain.SagaStatusFailed, reloaded.Status)
		assert.True(t, reloaded.IsTerminal())
	})

	t.Run("maps a save failure on entry to TRANSIENT_IO", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSagaAtInventory(t, repo)
		repo.saveErr = errors.New("connection reset")
		c := newTestCoordinator(repo, &fakePublisher{}, &fakeEventLog{})

		err := c.compensate(context.Background(), saga, "boom")
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryTransientIO))
	})
}
