// Package handlers is the HTTP and message-bus facing edge of the
// coordinator: event ingress dispatch (C1) plus the read-only admin,
// health and metrics surfaces.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/aioutlet/order-saga-coordinator/internal/application"
	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
)

// envelope is the second of the two accepted shapes for inbound payloads:
// {id, topic, data, timestamp, correlationId}, with `data` holding the
// actual event body. Every topic but order.created is only ever observed
// in its direct-body shape, but accepting the envelope everywhere is
// harmless and one less branch to special-case.
type envelope struct {
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	Data          json.RawMessage `json:"data"`
	Timestamp     string          `json:"timestamp"`
	CorrelationID string          `json:"correlationId"`
}

// SagaEventHandlers dispatches every inbound topic to the Coordinator use
// case that owns it (§4.1, §4.3).
type SagaEventHandlers struct {
	coordinator *application.Coordinator
	log         *slog.Logger
}

func NewSagaEventHandlers(coordinator *application.Coordinator, log *slog.Logger) *SagaEventHandlers {
	if log == nil {
		log = slog.Default()
	}
	return &SagaEventHandlers{coordinator: coordinator, log: log}
}

// HandlerID identifies this handler to the broker's subscribe call.
func (h *SagaEventHandlers) HandlerID() string {
	return "order-saga-coordinator-event-handler"
}

// Handle implements events.EventHandler: unwrap the envelope, attach the
// correlation id, and dispatch by topic. A handler error is re-raised
// unchanged so the broker adapter can redeliver (§4.1).
func (h *SagaEventHandlers) Handle(ctx context.Context, evt *events.Event) error {
	body, correlationID := h.unwrapPayload(evt)
	ctx = withCorrelationID(ctx, correlationID)

	log := h.log.With("event_type", evt.EventType, "correlation_id", correlationID)

	var err error
	switch evt.EventType {
	case events.OrderCreatedEvent:
		err = h.handleOrderCreated(ctx, body, correlationID)
	case events.PaymentProcessedEvent:
		err = h.decodeAndCall(body, &application.PaymentProcessedCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandlePaymentProcessed(ctx, cmd.(*application.PaymentProcessedCommand))
		})
	case events.PaymentFailedEvent:
		err = h.decodeAndCall(body, &application.PaymentFailedCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandlePaymentFailed(ctx, cmd.(*application.PaymentFailedCommand))
		})
	case events.InventoryReservedEvent:
		err = h.decodeAndCall(body, &application.InventoryReservedCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandleInventoryReserved(ctx, cmd.(*application.InventoryReservedCommand))
		})
	case events.InventoryFailedEvent:
		err = h.decodeAndCall(body, &application.InventoryFailedCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandleInventoryFailed(ctx, cmd.(*application.InventoryFailedCommand))
		})
	case events.ShippingPreparedEvent:
		err = h.decodeAndCall(body, &application.ShippingPreparedCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandleShippingPrepared(ctx, cmd.(*application.ShippingPreparedCommand))
		})
	case events.ShippingFailedEvent:
		err = h.decodeAndCall(body, &application.ShippingFailedCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandleShippingFailed(ctx, cmd.(*application.ShippingFailedCommand))
		})
	case events.OrderCancelledEvent:
		err = h.decodeAndCall(body, &application.OrderCancelledCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandleOrderCancelled(ctx, cmd.(*application.OrderCancelledCommand))
		})
	case events.OrderShippedEvent, events.OrderDeliveredEvent:
		err = h.decodeAndCall(body, &application.OrderStatusCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandleOrderShippedOrDelivered(ctx, cmd.(*application.OrderStatusCommand))
		})
	case events.OrderDeletedEvent:
		err = h.decodeAndCall(body, &application.OrderDeletedCommand{}, func(cmd interface{}) error {
			return h.coordinator.HandleOrderDeleted(ctx, cmd.(*application.OrderDeletedCommand))
		})
	default:
		log.WarnContext(ctx, "dropping event with no registered handler")
		return nil
	}

	if err != nil {
		log.ErrorContext(ctx, "event handling failed", "error", err)
	}
	return err
}

func (h *SagaEventHandlers) handleOrderCreated(ctx context.Context, body []byte, correlationID string) error {
	var cmd application.OrderCreatedCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		return err
	}
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = correlationID
	}
	return h.coordinator.HandleOrderCreated(ctx, &cmd)
}

// decodeAndCall unmarshals body into a fresh copy of the command shape and
// invokes call with it. Kept as a small indirection so every topic branch
// above reads the same shape rather than repeating the unmarshal/call
// pair with a different concrete type each time.
func (h *SagaEventHandlers) decodeAndCall(body []byte, cmd interface{}, call func(interface{}) error) error {
	if err := json.Unmarshal(body, cmd); err != nil {
		return err
	}
	return call(cmd)
}

// unwrapPayload resolves the direct-body vs. envelope shape and picks the
// correlation id in the order the ingress contract requires: event body
// field, envelope field, X-Correlation-ID header, the event's own
// CorrelationID, else generated.
func (h *SagaEventHandlers) unwrapPayload(evt *events.Event) (body []byte, correlationID string) {
	raw, err := evt.MarshalPayload()
	if err != nil {
		raw = []byte("{}")
	}

	var env envelope
	if json.Unmarshal(raw, &env) == nil && len(env.Data) > 0 && looksLikeEnvelope(raw) {
		body = env.Data
	} else {
		body = raw
	}

	var fromBody struct {
		CorrelationID string `json:"correlationId"`
	}
	_ = json.Unmarshal(body, &fromBody)

	switch {
	case fromBody.CorrelationID != "":
		correlationID = fromBody.CorrelationID
	case env.CorrelationID != "":
		correlationID = env.CorrelationID
	case headerCorrelationID(evt.Metadata) != "":
		correlationID = headerCorrelationID(evt.Metadata)
	case evt.CorrelationID != "":
		correlationID = evt.CorrelationID.String()
	default:
		correlationID = models.GenerateUUID().String()
	}
	return body, correlationID
}

// looksLikeEnvelope guards against a direct event body that happens to
// have a field named "data" being mistaken for the wrapper shape — the
// wrapper is only recognized when it also carries the wrapper's own
// "topic" field.
func looksLikeEnvelope(raw []byte) bool {
	var probe struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return false
	}
	return probe.Topic != "" && len(probe.Data) > 0
}

func headerCorrelationID(meta events.Metadata) string {
	for k, v := range meta {
		if strings.EqualFold(k, "X-Correlation-ID") {
			return v
		}
	}
	return ""
}

type correlationIDKey struct{}

func withCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext reads back the id withCorrelationID attached,
// for anything downstream (logging, tracing) that wants it without
// threading an extra parameter through every call.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
