package application

import (
	"context"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
)

// PaymentProcessedCommand is the decoded body of a `payment.processed` event.
type PaymentProcessedCommand struct {
	OrderID   string  `json:"orderId" validate:"required"`
	PaymentID string  `json:"paymentId" validate:"required"`
	Amount    float64 `json:"amount"`
}

// PaymentFailedCommand is the decoded body of a `payment.failed` event.
type PaymentFailedCommand struct {
	OrderID   string `json:"orderId" validate:"required"`
	Reason    string `json:"reason"`
	ErrorCode string `json:"errorCode"`
}

// HandlePaymentProcessed advances PAYMENT_PROCESSING -> INVENTORY_PROCESSING.
// A saga already past this step (ignored-event rule) is a no-op.
func (c *Coordinator) HandlePaymentProcessed(ctx context.Context, cmd *PaymentProcessedCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid payment.processed payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		return err
	}

	if err := saga.CompletePayment(cmd.PaymentID); err != nil {
		c.logIgnored(ctx, saga.ID, "payment.processed", nil, saga.CorrelationID)
		return nil
	}

	if err := c.commit(ctx, saga); err != nil {
		return err
	}
	c.logHandled(ctx, saga.ID, "payment.processed", nil, saga.CorrelationID)
	return nil
}

// HandlePaymentFailed retries the payment step within budget, otherwise
// starts compensation (a no-op compensation, since paymentId is never set
// at this point).
func (c *Coordinator) HandlePaymentFailed(ctx context.Context, cmd *PaymentFailedCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid payment.failed payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		return err
	}

	exhausted, err := saga.FailPayment(cmd.Reason)
	if err != nil {
		c.logIgnored(ctx, saga.ID, "payment.failed", nil, saga.CorrelationID)
		return nil
	}

	if !exhausted {
		if err := c.commit(ctx, saga); err != nil {
			return err
		}
		c.logHandled(ctx, saga.ID, "payment.failed", nil, saga.CorrelationID)
		return nil
	}

	if err := c.compensate(ctx, saga, "Payment failed: "+cmd.Reason); err != nil {
		return err
	}
	c.logHandled(ctx, saga.ID, "payment.failed", nil, saga.CorrelationID)
	return nil
}
