// Package domain holds the Saga aggregate: the persistent state machine
// that drives one order through payment, inventory and shipping.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/pkg/errors"
)

// SagaStatus is the saga's lifecycle state.
type SagaStatus string

const (
	SagaStatusCreated             SagaStatus = "CREATED"
	SagaStatusPaymentProcessing   SagaStatus = "PAYMENT_PROCESSING"
	SagaStatusPaymentCompleted    SagaStatus = "PAYMENT_COMPLETED"
	SagaStatusInventoryProcessing SagaStatus = "INVENTORY_PROCESSING"
	SagaStatusInventoryCompleted  SagaStatus = "INVENTORY_COMPLETED"
	SagaStatusShippingProcessing  SagaStatus = "SHIPPING_PROCESSING"
	SagaStatusCompleted           SagaStatus = "COMPLETED"
	SagaStatusFailed              SagaStatus = "FAILED"
	SagaStatusCompensating        SagaStatus = "COMPENSATING"
	SagaStatusCompensated         SagaStatus = "COMPENSATED"
)

// ProcessingStep is the current step pointer, independent of the finer
// grained status above — it is what the reconciler and metrics group by.
type ProcessingStep string

const (
	StepPayment   ProcessingStep = "PAYMENT"
	StepInventory ProcessingStep = "INVENTORY"
	StepShipping  ProcessingStep = "SHIPPING"
	StepCompleted ProcessingStep = "COMPLETED"
)

// DefaultMaxRetries is the retry budget per step when the coordinator is
// constructed without an explicit value — config.SagaRetry.MaxAttempts is
// the one that actually governs NewSaga in a running process.
const DefaultMaxRetries = 3

var (
	ErrWrongStatus     = errors.New("saga is not in the expected status for this transition")
	ErrAlreadyTerminal = errors.New("saga is already in a terminal status")
	ErrInvalidAmount   = errors.New("total amount must not be negative")
)

// Saga is the aggregate root: one row per order, mutated exclusively inside
// a single transaction per handled event.
type Saga struct {
	ID                     models.ID
	OrderID                models.ID
	CustomerID             string
	OrderNumber            string
	TotalAmount            models.Money
	Status                 SagaStatus
	CurrentStep            ProcessingStep
	PaymentID              *string
	InventoryReservationID *string
	ShippingID             *string
	OrderItems             json.RawMessage
	ShippingAddress        json.RawMessage
	BillingAddress         json.RawMessage
	RetryCount             int
	MaxRetries             int
	ErrorMessage           *string
	CorrelationID          models.ID
	Timestamps             models.Timestamps
	CompletedAt            *time.Time
	Version                models.Version

	events []*events.Event
}

// NewSaga creates the saga row for a freshly observed order and fuses the
// transient CREATED status into PAYMENT_PROCESSING, as the source system
// does, so the very first transaction both creates the row and kicks off
// the payment step.
func NewSaga(
	orderID models.ID,
	customerID, orderNumber string,
	totalAmount models.Money,
	correlationID models.ID,
	orderItems, shippingAddress, billingAddress json.RawMessage,
	maxRetries int,
) (*Saga, error) {
	if totalAmount.Amount < 0 {
		return nil, ErrInvalidAmount
	}
	if correlationID == "" {
		correlationID = models.GenerateUUID()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	s := &Saga{
		ID:              models.GenerateUUID(),
		OrderID:         orderID,
		CustomerID:      customerID,
		OrderNumber:     orderNumber,
		TotalAmount:     totalAmount,
		Status:          SagaStatusPaymentProcessing,
		CurrentStep:     StepPayment,
		OrderItems:      orderItems,
		ShippingAddress: shippingAddress,
		BillingAddress:  billingAddress,
		MaxRetries:      maxRetries,
		CorrelationID:   correlationID,
		Timestamps:      models.NewTimestamps(),
		Version:         models.NewVersion(),
	}

	s.recordEvent(events.NewEventWithTopic(s.ID, events.PaymentProcessingEvent, PaymentProcessingCommand{
		OrderID:         s.OrderID,
		TotalAmount:     s.TotalAmount,
		OrderItems:      s.OrderItems,
		ShippingAddress: s.ShippingAddress,
		BillingAddress:  s.BillingAddress,
	}).WithCorrelationID(s.CorrelationID))

	return s, nil
}

// IsTerminal reports whether the saga can no longer be mutated by
// step events (COMPLETED, FAILED, COMPENSATED).
func (s *Saga) IsTerminal() bool {
	switch s.Status {
	case SagaStatusCompleted, SagaStatusFailed, SagaStatusCompensated:
		return true
	default:
		return false
	}
}

// CanRetry reports whether another retry attempt is within budget for the
// saga's current processing step.
func (s *Saga) CanRetry() bool {
	if s.RetryCount >= s.MaxRetries {
		return false
	}
	switch s.Status {
	case SagaStatusPaymentProcessing, SagaStatusInventoryProcessing, SagaStatusShippingProcessing:
		return true
	default:
		return false
	}
}

func (s *Saga) touch() {
	s.Timestamps = s.Timestamps.Update()
}

// CompletePayment records the payment id and advances to the inventory
// step, emitting the inventory reservation command.
func (s *Saga) CompletePayment(paymentID string) error {
	if s.Status != SagaStatusPaymentProcessing {
		return ErrWrongStatus
	}

	s.PaymentID = &paymentID
	s.Status = SagaStatusInventoryProcessing
	s.CurrentStep = StepInventory
	s.RetryCount = 0
	s.touch()

	s.recordEvent(events.NewEventWithTopic(s.ID, events.InventoryReservationEvent, InventoryReservationCommand{
		OrderID:    s.OrderID,
		OrderItems: s.OrderItems,
	}).WithCorrelationID(s.CorrelationID))

	return nil
}

// FailPayment either republishes the payment command (retry) or returns
// retryExhausted = true so the caller starts compensation.
func (s *Saga) FailPayment(reason string) (retryExhausted bool, err error) {
	if s.Status != SagaStatusPaymentProcessing {
		return false, ErrWrongStatus
	}
	return s.failStep(reason, events.PaymentProcessingEvent, PaymentProcessingCommand{
		OrderID:         s.OrderID,
		TotalAmount:     s.TotalAmount,
		OrderItems:      s.OrderItems,
		ShippingAddress: s.ShippingAddress,
		BillingAddress:  s.BillingAddress,
	})
}

// CompleteInventory records the reservation id and advances to shipping.
func (s *Saga) CompleteInventory(reservationID string) error {
	if s.Status != SagaStatusInventoryProcessing {
		return ErrWrongStatus
	}

	s.InventoryReservationID = &reservationID
	s.Status = SagaStatusShippingProcessing
	s.CurrentStep = StepShipping
	s.RetryCount = 0
	s.touch()

	s.recordEvent(events.NewEventWithTopic(s.ID, events.ShippingPreparationEvent, ShippingPreparationCommand{
		OrderID:         s.OrderID,
		ShippingAddress: s.ShippingAddress,
		BillingAddress:  s.BillingAddress,
	}).WithCorrelationID(s.CorrelationID))

	return nil
}

// FailInventory either republishes the reservation command (retry) or
// signals retry exhaustion.
func (s *Saga) FailInventory(reason string) (retryExhausted bool, err error) {
	if s.Status != SagaStatusInventoryProcessing {
		return false, ErrWrongStatus
	}
	return s.failStep(reason, events.InventoryReservationEvent, InventoryReservationCommand{
		OrderID:    s.OrderID,
		OrderItems: s.OrderItems,
	})
}

// CompleteShipping records the shipping id, marks the saga COMPLETED and
// stamps completedAt.
func (s *Saga) CompleteShipping(shippingID string) error {
	if s.Status != SagaStatusShippingProcessing {
		return ErrWrongStatus
	}

	s.ShippingID = &shippingID
	s.Status = SagaStatusCompleted
	s.CurrentStep = StepCompleted
	now := time.Now()
	s.CompletedAt = &now
	s.touch()

	s.recordEvent(events.NewEventWithTopic(s.ID, events.OrderCompletedEvent, OrderCompletedNotification{
		OrderID:   s.OrderID,
		PaymentID: *s.PaymentID,
		ShippingID: s.ShippingID,
	}).WithCorrelationID(s.CorrelationID))

	return nil
}

// FailShipping either republishes the shipping command (retry) or signals
// retry exhaustion.
func (s *Saga) FailShipping(reason string) (retryExhausted bool, err error) {
	if s.Status != SagaStatusShippingProcessing {
		return false, ErrWrongStatus
	}
	return s.failStep(reason, events.ShippingPreparationEvent, ShippingPreparationCommand{
		OrderID:         s.OrderID,
		ShippingAddress: s.ShippingAddress,
		BillingAddress:  s.BillingAddress,
	})
}

// failStep implements the shared retry-or-exhaust policy used by every
// step's failure handler: retry republishes the same outbound command with
// an incremented counter; exhaustion records the reason in ErrorMessage but
// leaves status and retry count untouched for the caller to start
// compensation.
func (s *Saga) failStep(reason string, topic events.Topic, command interface{}) (retryExhausted bool, err error) {
	msg := reason
	s.ErrorMessage = &msg

	if !s.CanRetry() {
		return true, nil
	}

	s.RetryCount++
	s.touch()
	s.recordEvent(events.NewEventWithTopic(s.ID, topic, command).WithCorrelationID(s.CorrelationID))
	return false, nil
}

// StartCompensation moves the saga into COMPENSATING and returns the
// compensating commands to publish, in reverse order of resource
// acquisition. It does not itself publish — the application layer owns
// that so publish failures can be observed and mapped to FATAL_PUBLISH.
func (s *Saga) StartCompensation(reason string) []*events.Event {
	msg := reason
	s.ErrorMessage = &msg
	s.Status = SagaStatusCompensating
	s.touch()

	var commands []*events.Event
	if s.ShippingID != nil {
		commands = append(commands, events.NewEventWithTopic(s.ID, events.ShippingCancellationEvent, ShippingCancellationCommand{
			OrderID:    s.OrderID,
			ShippingID: *s.ShippingID,
		}).WithCorrelationID(s.CorrelationID))
	}
	if s.InventoryReservationID != nil {
		commands = append(commands, events.NewEventWithTopic(s.ID, events.InventoryReleaseEvent, InventoryReleaseCommand{
			OrderID:       s.OrderID,
			ReservationID: *s.InventoryReservationID,
		}).WithCorrelationID(s.CorrelationID))
	}
	if s.PaymentID != nil {
		commands = append(commands, events.NewEventWithTopic(s.ID, events.PaymentRefundEvent, PaymentRefundCommand{
			OrderID:   s.OrderID,
			PaymentID: *s.PaymentID,
		}).WithCorrelationID(s.CorrelationID))
	}

	for _, c := range commands {
		s.recordEvent(c)
	}

	failureMsg := ""
	if s.ErrorMessage != nil {
		failureMsg = *s.ErrorMessage
	}
	s.recordEvent(events.NewEventWithTopic(s.ID, events.OrderFailedEvent, OrderFailedNotification{
		OrderID:     s.OrderID,
		Reason:      failureMsg,
		FailureStep: s.FailureStep(),
	}).WithCorrelationID(s.CorrelationID))

	return commands
}

// FailureStep returns the first step whose resource id was never acquired,
// i.e. the step that triggered compensation.
func (s *Saga) FailureStep() string {
	if s.PaymentID == nil {
		return "payment"
	}
	if s.InventoryReservationID == nil {
		return "inventory"
	}
	if s.ShippingID == nil {
		return "shipping"
	}
	return ""
}

// CompensationDone transitions COMPENSATING -> COMPENSATED once every
// compensating command has been published successfully.
func (s *Saga) CompensationDone() error {
	if s.Status != SagaStatusCompensating {
		return ErrWrongStatus
	}
	s.Status = SagaStatusCompensated
	s.touch()
	return nil
}

// CompensationFailed transitions COMPENSATING -> FAILED when a
// compensating publish throws; no further compensation is attempted.
func (s *Saga) CompensationFailed(reason string) error {
	if s.Status != SagaStatusCompensating {
		return ErrWrongStatus
	}
	msg := reason
	s.ErrorMessage = &msg
	s.Status = SagaStatusFailed
	s.touch()
	return nil
}

// ForceComplete handles order.shipped / order.delivered: force-advance to
// COMPLETED regardless of current step, unless already terminal.
func (s *Saga) ForceComplete() error {
	if s.IsTerminal() {
		return ErrAlreadyTerminal
	}
	s.Status = SagaStatusCompleted
	s.CurrentStep = StepCompleted
	now := time.Now()
	s.CompletedAt = &now
	s.touch()

	s.recordEvent(events.NewEventWithTopic(s.ID, events.OrderStatusChangedEvent, OrderStatusChangedNotification{
		OrderID:   s.OrderID,
		NewStatus: string(s.Status),
	}).WithCorrelationID(s.CorrelationID))

	return nil
}

// RetryStep re-publishes the outbound command for the saga's current step
// and increments retryCount; used by the reconciler's stuck-sweep.
func (s *Saga) RetryStep() error {
	if !s.CanRetry() {
		return ErrWrongStatus
	}
	s.RetryCount++
	s.touch()

	switch s.Status {
	case SagaStatusPaymentProcessing:
		s.recordEvent(events.NewEventWithTopic(s.ID, events.PaymentProcessingEvent, PaymentProcessingCommand{
			OrderID:         s.OrderID,
			TotalAmount:     s.TotalAmount,
			OrderItems:      s.OrderItems,
			ShippingAddress: s.ShippingAddress,
			BillingAddress:  s.BillingAddress,
		}).WithCorrelationID(s.CorrelationID))
	case SagaStatusInventoryProcessing:
		s.recordEvent(events.NewEventWithTopic(s.ID, events.InventoryReservationEvent, InventoryReservationCommand{
			OrderID:    s.OrderID,
			OrderItems: s.OrderItems,
		}).WithCorrelationID(s.CorrelationID))
	case SagaStatusShippingProcessing:
		s.recordEvent(events.NewEventWithTopic(s.ID, events.ShippingPreparationEvent, ShippingPreparationCommand{
			OrderID:         s.OrderID,
			ShippingAddress: s.ShippingAddress,
			BillingAddress:  s.BillingAddress,
		}).WithCorrelationID(s.CorrelationID))
	default:
		return ErrWrongStatus
	}
	return nil
}

// Events returns the domain events recorded since the last ClearEvents.
func (s *Saga) Events() []*events.Event {
	return s.events
}

// ClearEvents empties the recorded-event buffer; called once the
// application layer has handed the events to the publisher.
func (s *Saga) ClearEvents() {
	s.events = nil
}

func (s *Saga) recordEvent(e *events.Event) {
	s.events = append(s.events, e)
}

// SagaRepository persists and queries saga rows with transactional
// integrity (C2).
type SagaRepository interface {
	Create(ctx context.Context, saga *Saga) error
	FindByID(ctx context.Context, id models.ID) (*Saga, error)
	FindByOrderID(ctx context.Context, orderID models.ID) (*Saga, error)
	FindAll(ctx context.Context, limit, offset int) ([]*Saga, error)
	Save(ctx context.Context, saga *Saga) error
	Delete(ctx context.Context, saga *Saga) error
	FindStuck(ctx context.Context, statuses []SagaStatus, olderThan time.Time) ([]*Saga, error)
	CountByStatus(ctx context.Context, status SagaStatus) (int64, error)
	CountByStatusIn(ctx context.Context, statuses []SagaStatus) (int64, error)
	CountStuck(ctx context.Context, statuses []SagaStatus, olderThan time.Time) (int64, error)
}

// Outbound command/notification payload shapes. These echo the fields the
// stored saga already holds so the engine never calls back to the
// originating service (spec'd data model §3).

type PaymentProcessingCommand struct {
	OrderID         models.ID       `json:"orderId"`
	TotalAmount     models.Money    `json:"totalAmount"`
	OrderItems      json.RawMessage `json:"items"`
	ShippingAddress json.RawMessage `json:"shippingAddress"`
	BillingAddress  json.RawMessage `json:"billingAddress"`
}

type InventoryReservationCommand struct {
	OrderID    models.ID       `json:"orderId"`
	OrderItems json.RawMessage `json:"items"`
}

type ShippingPreparationCommand struct {
	OrderID         models.ID       `json:"orderId"`
	ShippingAddress json.RawMessage `json:"shippingAddress"`
	BillingAddress  json.RawMessage `json:"billingAddress"`
}

type PaymentRefundCommand struct {
	OrderID   models.ID `json:"orderId"`
	PaymentID string    `json:"paymentId"`
}

type InventoryReleaseCommand struct {
	OrderID       models.ID `json:"orderId"`
	ReservationID string    `json:"reservationId"`
}

type ShippingCancellationCommand struct {
	OrderID    models.ID `json:"orderId"`
	ShippingID string    `json:"shippingId"`
}

type OrderCompletedNotification struct {
	OrderID    models.ID `json:"orderId"`
	PaymentID  string    `json:"paymentId"`
	ShippingID *string   `json:"shippingId"`
}

type OrderFailedNotification struct {
	OrderID     models.ID `json:"orderId"`
	Reason      string    `json:"reason"`
	FailureStep string    `json:"failureStep"`
}

type OrderStatusChangedNotification struct {
	OrderID   models.ID `json:"orderId"`
	NewStatus string    `json:"newStatus"`
}
