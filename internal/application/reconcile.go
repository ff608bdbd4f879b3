package application

import (
	"context"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
)

// processingStatuses are the statuses a saga can be stuck in — anything
// else is either terminal or already being compensated.
var processingStatuses = []domain.SagaStatus{
	domain.SagaStatusPaymentProcessing,
	domain.SagaStatusInventoryProcessing,
	domain.SagaStatusShippingProcessing,
}

// StuckSweepResult summarizes one sweep pass for logging and metrics.
type StuckSweepResult struct {
	Found       int
	Retried     int
	Compensated int
	Errored     int
}

// ReconcileStuck finds every saga that has sat in a processing status past
// olderThan and either retries its current step (within budget) or starts
// compensation (budget exhausted). It is the reconciler's stuck-sweep body
// (§4.5), callable directly so the cron wiring stays a thin scheduling
// shell around this transactional unit of work.
func (c *Coordinator) ReconcileStuck(ctx context.Context, olderThan time.Time) (StuckSweepResult, error) {
	var result StuckSweepResult

	stuck, err := c.repo.FindStuck(ctx, processingStatuses, olderThan)
	if err != nil {
		return result, apperrors.TransientIO("failed to query stuck sagas", err)
	}
	result.Found = len(stuck)

	for _, saga := range stuck {
		if saga.CanRetry() {
			if err := saga.RetryStep(); err != nil {
				result.Errored++
				c.log.WarnContext(ctx, "failed to retry stuck saga step", "error", err, "saga_id", saga.ID)
				continue
			}
			if err := c.commit(ctx, saga); err != nil {
				result.Errored++
				c.log.WarnContext(ctx, "failed to commit retried saga", "error", err, "saga_id", saga.ID)
				continue
			}
			if c.metrics != nil {
				c.metrics.RecordRetry(saga.OrderNumber, string(saga.CurrentStep), saga.RetryCount)
			}
			result.Retried++
			continue
		}

		if err := c.compensate(ctx, saga, "saga stuck in processing state past the retry budget"); err != nil {
			result.Errored++
			c.log.WarnContext(ctx, "failed to compensate stuck saga", "error", err, "saga_id", saga.ID)
			continue
		}
		result.Compensated++
	}

	return result, nil
}

// CountActive and CountStuck back the reconciler's periodic gauge refresh.
func (c *Coordinator) CountActive(ctx context.Context) (int64, error) {
	return c.repo.CountByStatusIn(ctx, []domain.SagaStatus{
		domain.SagaStatusPaymentProcessing,
		domain.SagaStatusInventoryProcessing,
		domain.SagaStatusShippingProcessing,
		domain.SagaStatusCompensating,
	})
}

func (c *Coordinator) CountStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	return c.repo.CountStuck(ctx, processingStatuses, olderThan)
}
