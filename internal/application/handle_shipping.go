package application

import (
	"context"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
)

// ShippingPreparedCommand is the decoded body of a `shipping.prepared` event.
type ShippingPreparedCommand struct {
	OrderID        string `json:"orderId" validate:"required"`
	ShippingID     string `json:"shippingId" validate:"required"`
	TrackingNumber string `json:"trackingNumber"`
}

// ShippingFailedCommand is the decoded body of a `shipping.failed` event.
type ShippingFailedCommand struct {
	OrderID   string `json:"orderId" validate:"required"`
	Reason    string `json:"reason"`
	ErrorCode string `json:"errorCode"`
}

// HandleShippingPrepared completes the saga: SHIPPING_PROCESSING -> COMPLETED.
func (c *Coordinator) HandleShippingPrepared(ctx context.Context, cmd *ShippingPreparedCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid shipping.prepared payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		return err
	}

	if err := saga.CompleteShipping(cmd.ShippingID); err != nil {
		c.logIgnored(ctx, saga.ID, "shipping.prepared", nil, saga.CorrelationID)
		return nil
	}

	if err := c.commit(ctx, saga); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordSagaCompleted(saga.OrderNumber)
	}
	c.logHandled(ctx, saga.ID, "shipping.prepared", nil, saga.CorrelationID)
	return nil
}

// HandleShippingFailed retries shipping preparation within budget, otherwise
// compensates (releasing inventory and refunding the payment).
func (c *Coordinator) HandleShippingFailed(ctx context.Context, cmd *ShippingFailedCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid shipping.failed payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		return err
	}

	exhausted, err := saga.FailShipping(cmd.Reason)
	if err != nil {
		c.logIgnored(ctx, saga.ID, "shipping.failed", nil, saga.CorrelationID)
		return nil
	}

	if !exhausted {
		if err := c.commit(ctx, saga); err != nil {
			return err
		}
		c.logHandled(ctx, saga.ID, "shipping.failed", nil, saga.CorrelationID)
		return nil
	}

	if err := c.compensate(ctx, saga, "Shipping preparation failed: "+cmd.Reason); err != nil {
		return err
	}
	c.logHandled(ctx, saga.ID, "shipping.failed", nil, saga.CorrelationID)
	return nil
}
