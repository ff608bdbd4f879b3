package application

import (
	"context"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
)

// compensate drives a saga from its current non-terminal status into
// COMPENSATING, publishes the reverse-order undo commands plus the
// order.failed notification the compensation algorithm produces, and then
// closes it out as COMPENSATED. A publish failure mid-compensation leaves
// the saga FATAL_PUBLISH/FAILED for operator-driven recovery rather than
// retrying compensation automatically — compensation is best-effort and
// not itself retried by this engine.
func (c *Coordinator) compensate(ctx context.Context, saga *domain.Saga, reason string) error {
	saga.StartCompensation(reason)
	pending := saga.Events()

	if err := c.repo.Save(ctx, saga); err != nil {
		return apperrors.TransientIO("failed to persist compensating saga", err)
	}
	saga.ClearEvents()

	if err := c.publisher.Publish(ctx, pending...); err != nil {
		if failErr := saga.CompensationFailed(err.Error()); failErr == nil {
			_ = c.repo.Save(ctx, saga)
		}
		if c.metrics != nil {
			c.metrics.RecordSagaFailed(saga.OrderNumber)
		}
		return apperrors.FatalPublish("failed to publish compensating commands", err)
	}

	if err := saga.CompensationDone(); err != nil {
		return apperrors.TransientIO("failed to mark saga compensated", err)
	}
	if err := c.repo.Save(ctx, saga); err != nil {
		return apperrors.TransientIO("failed to persist compensated saga", err)
	}

	if c.metrics != nil {
		c.metrics.RecordSagaCompensated(saga.OrderNumber)
	}
	return nil
}
