package application

import (
	"context"
	"encoding/json"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// OrderCreatedCommand is the decoded body of an `order.created` event.
type OrderCreatedCommand struct {
	OrderID         string          `json:"orderId" validate:"required"`
	CorrelationID   string          `json:"correlationId"`
	CustomerID      string          `json:"customerId" validate:"required"`
	OrderNumber     string          `json:"orderNumber" validate:"required"`
	TotalAmount     float64         `json:"totalAmount" validate:"gte=0"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	Items           json.RawMessage `json:"items"`
	ShippingAddress json.RawMessage `json:"shippingAddress"`
	BillingAddress  json.RawMessage `json:"billingAddress"`
}

// HandleOrderCreated creates the saga row and kicks off the payment step.
// A duplicate orderId is ALREADY_EXISTS: swallowed and logged at warn, no
// state change (spec's duplicate-creation tie-break). No metric is recorded
// for a duplicate.
func (c *Coordinator) HandleOrderCreated(ctx context.Context, cmd *OrderCreatedCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid order.created payload", err)
	}

	orderID := models.ID(cmd.OrderID)
	correlationID := models.ID(cmd.CorrelationID)
	amount := models.NewMoney(int64(cmd.TotalAmount*100), cmd.Currency)

	saga, err := domain.NewSaga(orderID, cmd.CustomerID, cmd.OrderNumber, amount, correlationID, cmd.Items, cmd.ShippingAddress, cmd.BillingAddress, c.maxRetries)
	if err != nil {
		return apperrors.DecodeError("failed to construct saga", err)
	}

	if err := c.repo.Create(ctx, saga); err != nil {
		if apperrors.IsCategory(err, apperrors.CategoryAlreadyExists) {
			c.log.WarnContext(ctx, "saga already exists for order", "order_id", cmd.OrderID)
			return nil
		}
		return apperrors.TransientIO("failed to create saga", err)
	}

	pending := saga.Events()
	saga.ClearEvents()
	if err := c.publisher.Publish(ctx, pending...); err != nil {
		return apperrors.TransientIO("failed to publish payment.processing", err)
	}

	if c.metrics != nil {
		c.metrics.RecordSagaStarted(cmd.OrderNumber)
	}
	c.logHandled(ctx, saga.ID, "order.created", nil, correlationID)
	return nil
}
