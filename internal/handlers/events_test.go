package handlers

import (
	"context"
	"testing"

	"github.com/aioutlet/order-saga-coordinator/internal/application"
	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_DirectBodyDispatch(t *testing.T) {
	coordinator, repo := newTestHandlerCoordinator(t)
	handlers := NewSagaEventHandlers(coordinator, nil)

	cmd := map[string]interface{}{
		"orderId":     "550e8400-e29b-41d4-a716-446655440020",
		"customerId":  "cust-1",
		"orderNumber": "ORD-3001",
		"totalAmount": 19.99,
		"currency":    "USD",
	}
	evt := events.NewEvent(models.GenerateUUID(), events.OrderCreatedEvent, cmd)

	err := handlers.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.NotNil(t, repo.byOrderID["550e8400-e29b-41d4-a716-446655440020"])
}

func TestHandle_EnvelopeShapeUnwrapped(t *testing.T) {
	coordinator, repo := newTestHandlerCoordinator(t)
	handlers := NewSagaEventHandlers(coordinator, nil)

	inner := map[string]interface{}{
		"orderId":     "550e8400-e29b-41d4-a716-446655440021",
		"customerId":  "cust-1",
		"orderNumber": "ORD-3002",
		"totalAmount": 29.99,
		"currency":    "USD",
	}
	wrapped := map[string]interface{}{
		"id":    "evt-1",
		"topic": string(events.OrderCreatedEvent),
		"data":  inner,
	}
	evt := events.NewEvent(models.GenerateUUID(), events.OrderCreatedEvent, wrapped)

	err := handlers.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.NotNil(t, repo.byOrderID["550e8400-e29b-41d4-a716-446655440021"])
}

func TestHandle_UnknownTopicIsDropped(t *testing.T) {
	coordinator, _ := newTestHandlerCoordinator(t)
	handlers := NewSagaEventHandlers(coordinator, nil)

	evt := events.NewEvent(models.GenerateUUID(), "some.unregistered.topic", map[string]interface{}{})
	err := handlers.Handle(context.Background(), evt)
	assert.NoError(t, err)
}

func TestUnwrapPayload_CorrelationIDPrecedence(t *testing.T) {
	handlers := NewSagaEventHandlers(nil, nil)

	t.Run("prefers the correlation id embedded in the body", func(t *testing.T) {
		evt := events.NewEvent(models.GenerateUUID(), events.OrderCreatedEvent, map[string]interface{}{
			"correlationId": "from-body",
		})
		evt.CorrelationID = models.GenerateUUID()
		_, corr := handlers.unwrapPayload(evt)
		assert.Equal(t, "from-body", corr)
	})

	t.Run("falls back to the event's own correlation id", func(t *testing.T) {
		evt := events.NewEvent(models.GenerateUUID(), events.OrderCreatedEvent, map[string]interface{}{})
		evt.CorrelationID = models.GenerateUUID()
		_, corr := handlers.unwrapPayload(evt)
		assert.Equal(t, evt.CorrelationID.String(), corr)
	})

	t.Run("falls back to the X-Correlation-ID header", func(t *testing.T) {
		evt := events.NewEvent(models.GenerateUUID(), events.OrderCreatedEvent, map[string]interface{}{})
		evt.Metadata.Set("X-Correlation-ID", "from-header")
		_, corr := handlers.unwrapPayload(evt)
		assert.Equal(t, "from-header", corr)
	})

	t.Run("generates one when nothing is available", func(t *testing.T) {
		evt := events.NewEvent(models.GenerateUUID(), events.OrderCreatedEvent, map[string]interface{}{})
		_, corr := handlers.unwrapPayload(evt)
		assert.NotEmpty(t, corr)
	})
}

func TestLooksLikeEnvelope(t *testing.T) {
	assert.True(t, looksLikeEnvelope([]byte(`{"topic":"order.created","data":{"a":1}}`)))
	assert.False(t, looksLikeEnvelope([]byte(`{"data":{"a":1}}`)))
	assert.False(t, looksLikeEnvelope([]byte(`{"topic":"order.created"}`)))
	assert.False(t, looksLikeEnvelope([]byte(`{"orderId":"x","data":"not-an-object"}`)))
}

func newTestHandlerCoordinator(t *testing.T) (*application.Coordinator, *stubSagaRepository) {
	t.Helper()
	repo := newStubSagaRepository()
	return application.NewCoordinator(repo, &stubPublisher{}, &stubEventLog{}, nil, nil, 3), repo
}
