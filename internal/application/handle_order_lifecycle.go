package application

import (
	"context"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
)

// OrderCancelledCommand is the decoded body of an `order.cancelled` event.
type OrderCancelledCommand struct {
	OrderID string `json:"orderId" validate:"required"`
	Reason  string `json:"reason"`
}

// OrderStatusCommand is the decoded body of `order.shipped` / `order.delivered`.
type OrderStatusCommand struct {
	OrderID   string `json:"orderId" validate:"required"`
	NewStatus string `json:"newStatus"`
}

// OrderDeletedCommand is the decoded body of an `order.deleted` event.
type OrderDeletedCommand struct {
	OrderID string `json:"orderId" validate:"required"`
	Reason  string `json:"reason"`
}

// HandleOrderCancelled starts compensation for any non-terminal saga.
// If already COMPENSATING/COMPENSATED, it is dropped (tie-break in §4.3).
func (c *Coordinator) HandleOrderCancelled(ctx context.Context, cmd *OrderCancelledCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid order.cancelled payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		if apperrors.IsCategory(err, apperrors.CategoryNotFound) {
			c.log.WarnContext(ctx, "no saga for cancelled order", "order_id", cmd.OrderID)
			return nil
		}
		return err
	}

	if saga.Status == domain.SagaStatusCompensating || saga.Status == domain.SagaStatusCompensated || saga.IsTerminal() {
		c.logIgnored(ctx, saga.ID, "order.cancelled", nil, saga.CorrelationID)
		return nil
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "User requested"
	}
	if err := c.compensate(ctx, saga, "Order cancelled: "+reason); err != nil {
		return err
	}
	c.logHandled(ctx, saga.ID, "order.cancelled", nil, saga.CorrelationID)
	return nil
}

// HandleOrderShippedOrDelivered force-advances a non-terminal saga straight
// to COMPLETED, regardless of its current step — the order service is the
// authority once it reports the order physically shipped or delivered.
func (c *Coordinator) HandleOrderShippedOrDelivered(ctx context.Context, cmd *OrderStatusCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid order status payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		if apperrors.IsCategory(err, apperrors.CategoryNotFound) {
			c.log.InfoContext(ctx, "no saga for order status change, may already be completed", "order_id", cmd.OrderID)
			return nil
		}
		return err
	}

	if err := saga.ForceComplete(); err != nil {
		c.logIgnored(ctx, saga.ID, "order.status", nil, saga.CorrelationID)
		return nil
	}

	if err := c.commit(ctx, saga); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordSagaCompleted(saga.OrderNumber)
	}
	c.logHandled(ctx, saga.ID, "order.status", nil, saga.CorrelationID)
	return nil
}

// HandleOrderDeleted compensates a still-in-flight saga first, then removes
// the row regardless of outcome.
func (c *Coordinator) HandleOrderDeleted(ctx context.Context, cmd *OrderDeletedCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid order.deleted payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		if apperrors.IsCategory(err, apperrors.CategoryNotFound) {
			c.log.InfoContext(ctx, "no saga for deleted order", "order_id", cmd.OrderID)
			return nil
		}
		return err
	}

	if !saga.IsTerminal() {
		reason := cmd.Reason
		if reason == "" {
			reason = "User requested"
		}
		if err := c.compensate(ctx, saga, "Order deleted: "+reason); err != nil {
			c.log.ErrorContext(ctx, "failed to compensate saga before deletion", "error", err, "order_id", cmd.OrderID)
		}
	}

	if err := c.repo.Delete(ctx, saga); err != nil {
		return apperrors.TransientIO("failed to delete saga", err)
	}

	if c.metrics != nil {
		c.metrics.RecordSagaDeleted(saga.OrderNumber)
	}
	c.logHandled(ctx, saga.ID, "order.deleted", nil, saga.CorrelationID)
	return nil
}
