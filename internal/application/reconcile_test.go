package application

import (
	"context"
	"testing"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileStuck(t *testing.T) {
	t.Run("retries a stuck saga within its retry budget", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSaga(t, repo)
		pub := &fakePublisher{}
		c := newTestCoordinator(repo, pub, &fakeEventLog{})

		result, err := c.ReconcileStuck(context.Background(), time.Now().Add(time.Hour))
		require.NoError(t, err)

		assert.Equal(t, 1, result.Found)
		assert.Equal(t, 1, result.Retried)
		assert.Equal(t, 0, result.Compensated)
		assert.Equal(t, 1, repo.byOrderID[saga.OrderID].RetryCount)
	})

	t.Run("compensates a stuck saga whose retry budget is exhausted", func(t *testing.T) {
		repo := newFakeSagaRepository()
		saga := seedSaga(t, repo)
		saga.RetryCount = saga.MaxRetries
		require.NoError(t, repo.Save(context.Background(), saga))
		c := newTestCoordinator(repo, &fakePublisher{}, &fakeEventLog{})

		result, err := c.ReconcileStuck(context.Background(), time.Now().Add(time.Hour))
		require.NoError(t, err)

		assert.Equal(t, 1, result.Found)
		assert.Equal(t, 0, result.Retried)
		assert.Equal(t, 1, result.Compensated)
		assert.Equal(t, domain.SagaStatusCompensated, repo.byOrderID[saga.OrderID].Status)
	})

	t.Run("reports zero found when nothing is stuck", func(t *testing.T) {
		repo := newFakeSagaRepository()
		c := newTestCoordinator(repo, &fakePublisher{}, &fakeEventLog{})

		result, err := c.ReconcileStuck(context.Background(), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, StuckSweepResult{}, result)
	})
}

func TestCountActiveAndCountStuck(t *testing.T) {
	repo := newFakeSagaRepository()
	seedSaga(t, repo)
	c := newTestCoordinator(repo, &fakePublisher{}, &fakeEventLog{})

	active, err := c.CountActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	stuck, err := c.CountStuck(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stuck)
}
