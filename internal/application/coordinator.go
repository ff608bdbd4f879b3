// Package application is the Saga Coordinator (C3): the event-to-transition
// logic, compensation bookkeeping and retry policy that drives the Saga
// aggregate through payment, inventory and shipping.
package application

import (
	"context"
	"log/slog"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/aioutlet/order-saga-coordinator/internal/telemetry"
	"github.com/pkg/errors"
)

// Coordinator wires the Saga State Store (C2) and Outbound Publisher (C4)
// into the state-machine transitions described for each inbound topic.
// One event is handled as one transaction: repository.Save either commits
// the new state, after which the recorded events are published, or the save
// fails and nothing is emitted.
type Coordinator struct {
	repo       domain.SagaRepository
	publisher  events.Publisher
	eventLog   EventLog
	metrics    *telemetry.SagaMetrics
	log        *slog.Logger
	maxRetries int
}

// EventLog is the append-only audit trail (`saga_event_log`): one row per
// processed inbound event, independent of the saga row's own lifecycle.
type EventLog interface {
	Record(ctx context.Context, sagaID models.ID, eventType string, payload []byte, correlationID models.ID, status ProcessingStatus) error
}

// ProcessingStatus is the outcome an ingested event was recorded with.
type ProcessingStatus string

const (
	ProcessingStatusHandled ProcessingStatus = "HANDLED"
	ProcessingStatusIgnored ProcessingStatus = "IGNORED"
	ProcessingStatusDropped ProcessingStatus = "DROPPED"
	ProcessingStatusError   ProcessingStatus = "ERROR"
)

// NewCoordinator wires the Coordinator's dependencies. maxRetries is
// config.SagaRetry.MaxAttempts (saga.retry.maxAttempts); a non-positive
// value falls back to domain.DefaultMaxRetries in NewSaga.
func NewCoordinator(repo domain.SagaRepository, publisher events.Publisher, eventLog EventLog, metrics *telemetry.SagaMetrics, log *slog.Logger, maxRetries int) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{repo: repo, publisher: publisher, eventLog: eventLog, metrics: metrics, log: log, maxRetries: maxRetries}
}

// commit saves the mutated saga and, only once the save has succeeded,
// publishes every event the mutation recorded. A publish failure after a
// successful save is reported as TRANSIENT_IO so the broker redelivers.
// The saga row has already moved on by then, so the redelivered event is
// dropped by the ignored-event rule (no double mutation) and the lost
// events are not re-published by it; for a saga still in a processing
// status, the step command is emitted again only by the reconciler's
// stuck-sweep.
func (c *Coordinator) commit(ctx context.Context, saga *domain.Saga) error {
	pending := saga.Events()
	if err := c.repo.Save(ctx, saga); err != nil {
		if apperrors.IsCategory(err, apperrors.CategoryConflict) {
			return err
		}
		return apperrors.TransientIO("failed to save saga", err)
	}
	saga.ClearEvents()

	if len(pending) == 0 {
		return nil
	}
	if err := c.publisher.Publish(ctx, pending...); err != nil {
		return apperrors.TransientIO("failed to publish saga events", err)
	}
	return nil
}

// logIgnored records a no-op outcome in the audit log without error.
func (c *Coordinator) logIgnored(ctx context.Context, sagaID models.ID, eventType string, payload []byte, correlationID models.ID) {
	if c.eventLog == nil {
		return
	}
	if err := c.eventLog.Record(ctx, sagaID, eventType, payload, correlationID, ProcessingStatusIgnored); err != nil {
		c.log.WarnContext(ctx, "failed to record ignored event", "error", err, "event_type", eventType)
	}
}

func (c *Coordinator) logHandled(ctx context.Context, sagaID models.ID, eventType string, payload []byte, correlationID models.ID) {
	if c.eventLog == nil {
		return
	}
	if err := c.eventLog.Record(ctx, sagaID, eventType, payload, correlationID, ProcessingStatusHandled); err != nil {
		c.log.WarnContext(ctx, "failed to record handled event", "error", err, "event_type", eventType)
	}
}

// findSaga loads the saga for orderID, mapping a miss to the NOT_FOUND
// taxonomy category instead of a bare sentinel so callers can branch on it
// uniformly with every other handler error.
func (c *Coordinator) findSaga(ctx context.Context, orderID models.ID) (*domain.Saga, error) {
	saga, err := c.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if apperrors.IsCategory(err, apperrors.CategoryNotFound) {
			return nil, err
		}
		return nil, apperrors.TransientIO("failed to load saga", err)
	}
	if saga == nil {
		return nil, apperrors.NotFound("no saga for order", errors.Errorf("orderId=%s", orderID))
	}
	return saga, nil
}
