package application

import (
	"context"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
)

// InventoryReservedCommand is the decoded body of an `inventory.reserved` event.
type InventoryReservedCommand struct {
	OrderID       string `json:"orderId" validate:"required"`
	ReservationID string `json:"reservationId" validate:"required"`
}

// InventoryFailedCommand is the decoded body of an `inventory.failed` event.
type InventoryFailedCommand struct {
	OrderID   string `json:"orderId" validate:"required"`
	Reason    string `json:"reason"`
	ErrorCode string `json:"errorCode"`
}

// HandleInventoryReserved advances INVENTORY_PROCESSING -> SHIPPING_PROCESSING.
func (c *Coordinator) HandleInventoryReserved(ctx context.Context, cmd *InventoryReservedCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid inventory.reserved payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		return err
	}

	if err := saga.CompleteInventory(cmd.ReservationID); err != nil {
		c.logIgnored(ctx, saga.ID, "inventory.reserved", nil, saga.CorrelationID)
		return nil
	}

	if err := c.commit(ctx, saga); err != nil {
		return err
	}
	c.logHandled(ctx, saga.ID, "inventory.reserved", nil, saga.CorrelationID)
	return nil
}

// HandleInventoryFailed retries the reservation within budget, otherwise
// compensates (refunding the payment already taken).
func (c *Coordinator) HandleInventoryFailed(ctx context.Context, cmd *InventoryFailedCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return apperrors.DecodeError("invalid inventory.failed payload", err)
	}

	saga, err := c.findSaga(ctx, models.ID(cmd.OrderID))
	if err != nil {
		return err
	}

	exhausted, err := saga.FailInventory(cmd.Reason)
	if err != nil {
		c.logIgnored(ctx, saga.ID, "inventory.failed", nil, saga.CorrelationID)
		return nil
	}

	if !exhausted {
		if err := c.commit(ctx, saga); err != nil {
			return err
		}
		c.logHandled(ctx, saga.ID, "inventory.failed", nil, saga.CorrelationID)
		return nil
	}

	if err := c.compensate(ctx, saga, "Inventory reservation failed: "+cmd.Reason); err != nil {
		return err
	}
	c.logHandled(ctx, saga.ID, "inventory.failed", nil, saga.CorrelationID)
	return nil
}
