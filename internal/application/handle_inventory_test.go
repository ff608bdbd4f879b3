package application

import (
	"context"
	"testing"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSagaAtInventory(t *testing.T, repo *fakeSagaRepository) *domain.Saga {
	t.Helper()
	saga := seedSaga(t, repo)
	require.NoError(t, saga.CompletePayment("pay-1"))
	saga.ClearEvents()
	return saga
}

func TestHandleInventoryReserved(t *testing.T) {
	t.Run("advances to shipping processing and publishes", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSagaAtInventory(t, repo)
		pub := &fakePublisher{}
		log := &fakeEventLog{}
		c := newTestCoordinator(repo, pub, log)

		err := c.HandleInventoryReserved(context.Background(), &InventoryReservedCommand{
			OrderID:       string(saga.OrderID),
			ReservationID: "res-1",
		})
		require.NoError(t, err)

		reloaded := repo.byOrderID[saga.OrderID]
		assert.Equal(t, domain.SagaStatusShippingProcessing, reloaded.Status)
		require.Len(t, pub.published, 1)
		assert.Equal(t, []ProcessingStatus{ProcessingStatusHandled}, log.entries)
	})

	t.Run("ignores the event when the saga is not in inventory processing", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSaga(t, repo)
		pub := &fakePublisher{}
		log := &fakeEventLog{}
		c := newTestCoordinator(repo, pub, log)

		err := c.HandleInventoryReserved(context.Background(), &InventoryReservedCommand{
			OrderID:       string(saga.OrderID),
			ReservationID: "res-1",
		})
		require.NoError(t, err)
		assert.Empty(t, pub.published)
		assert.Equal(t, []ProcessingStatus{ProcessingStatusIgnored}, log.entries)
	})
}

func TestHandleInventoryFailed(t *testing.T) {
	t.Run("retries within budget", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSagaAtInventory(t, repo)
		pub := &fakePublisher{}
		c := newTestCoordinator(repo, pub, &fakeEventLog{})

		err := c.HandleInventoryFailed(context.Background(), &InventoryFailedCommand{
			OrderID: string(saga.OrderID),
			Reason:  "out of stock",
		})
		require.NoError(t, err)

		reloaded := repo.byOrderID[saga.OrderID]
		assert.Equal(t, domain.SagaStatusInventoryProcessing, reloaded.Status)
		assert.Equal(t, 1, reloaded.RetryCount)
	})

	t.Run("compensates and refunds the payment once exhausted", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSagaAtInventory(t, repo)
		pub := &fakePublisher{}
		c := newTestCoordinator(repo, pub, &fakeEventLog{})

		for i := 0; i < domain.DefaultMaxRetries; i++ {
			require.NoError(t, c.HandleInventoryFailed(context.Background(), &InventoryFailedCommand{
				OrderID: string(saga.OrderID),
				Reason:  "out of stock",
			}))
		}

		err := c.HandleInventoryFailed(context.Background(), &InventoryFailedCommand{
			OrderID: string(saga.OrderID),
			Reason:  "out of stock",
		})
		require.NoError(t, err)

		reloaded := repo.byOrderID[saga.OrderID]
		assert.Equal(t, domain.SagaStatusCompensated, reloaded.Status)

		lastBatch := pub.published[len(pub.published)-1]
		require.Len(t, lastBatch, 2)
		assert.Equal(t, events.PaymentRefundEvent, string(lastBatch[0].Topic))
		assert.Equal(t, events.OrderFailedEvent, string(lastBatch[1].Topic))
	})

	t.Run("rejects an invalid payload", func(t *testing.T) {
		repo := newFakeSagaRepository()
		c := newTestCoordinator(repo, &fakePublisher{}, &fakeEventLog{})

		err := c.HandleInventoryFailed(context.Background(), &InventoryFailedCommand{})
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecodeError))
	})
}
