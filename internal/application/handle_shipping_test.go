package application

import (
	"context"
	"testing"

	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSagaAtShipping(t *testing.T, repo *fakeSagaRepository) *domain.Saga {
	t.Helper()
	saga := seedSagaAtInventory(t, repo)
	require.NoError(t, saga.CompleteInventory("res-1"))
	saga.ClearEvents()
	return saga
}

func TestHandleShippingPrepared(t *testing.T) {
	t.Run("completes the saga", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSagaAtShipping(t, repo)
		pub := &fakePublisher{}
		log := &fakeEventLog{}
		c := newTestCoordinator(repo, pub, log)

		err := c.HandleShippingPrepared(context.Background(), &ShippingPreparedCommand{
			OrderID:    string(saga.OrderID),
			ShippingID: "ship-1",
		})
		require.NoError(t, err)

		reloaded := repo.byOrderID[saga.OrderID]
		assert.Equal(t, domain.SagaStatusCompleted, reloaded.Status)
		assert.True(t, reloaded.IsTerminal())
		require.Len(t, pub.published, 1)
		assert.Equal(t, []ProcessingStatus{ProcessingStatusHandled}, log.entries)
	})

	t.Run("ignores the event outside shipping processing", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSaga(t, repo)
		log := &fakeEventLog{}
		c := newTestCoordinator(repo, &fakePublisher{}, log)

		err := c.HandleShippingPrepared(context.Background(), &ShippingPreparedCommand{
			OrderID:    string(saga.OrderID),
			ShippingID: "ship-1",
		})
		require.NoError(t, err)
		assert.Equal(t, []ProcessingStatus{ProcessingStatusIgnored}, log.entries)
	})
}

func TestHandleShippingFailed(t *testing.T) {
	t.Run("retries within budget", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSagaAtShipping(t, repo)
		c := newTestCoordinator(repo, &fakePublisher{}, &fakeEventLog{})

		err := c.HandleShippingFailed(context.Background(), &ShippingFailedCommand{
			OrderID: string(saga.OrderID),
			Reason:  "carrier rejected package",
		})
		require.NoError(t, err)

		reloaded := repo.byOrderID[saga.OrderID]
		assert.Equal(t, domain.SagaStatusShippingProcessing, reloaded.Status)
		assert.Equal(t, 1, reloaded.RetryCount)
	})

	t.Run("compensates inventory and payment once exhausted", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSagaAtShipping(t, repo)
		pub := &fakePublisher{}
		c := newTestCoordinator(repo, pub, &fakeEventLog{})

		for i := 0; i < domain.DefaultMaxRetries; i++ {
			require.NoError(t, c.HandleShippingFailed(context.Background(), &ShippingFailedCommand{
				OrderID: string(saga.OrderID),
				Reason:  "carrier rejected package",
			}))
		}

		err := c.HandleShippingFailed(context.Background(), &ShippingFailedCommand{
			OrderID: string(saga.OrderID),
			Reason:  "carrier rejected package",
		})
		require.NoError(t, err)

		reloaded := repo.byOrderID[saga.OrderID]
		assert.Equal(t, domain.SagaStatusCompensated, reloaded.Status)

		lastBatch := pub.published[len(pub.published)-1]
		require.Len(t, lastBatch, 3)
		assert.Equal(t, events.InventoryReleaseEvent, string(lastBatch[0].Topic))
		assert.Equal(t, events.PaymentRefundEvent, string(lastBatch[1].Topic))
		assert.Equal(t, events.OrderFailedEvent, string(lastBatch[2].Topic))
	})
}
