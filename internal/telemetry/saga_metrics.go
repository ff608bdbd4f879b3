package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SagaMetrics is the counter/gauge set the coordinator and reconciler emit
// through, one otel instrument per saga lifecycle transition.
type SagaMetrics struct {
	started      metric.Int64Counter
	completed    metric.Int64Counter
	failed       metric.Int64Counter
	compensated  metric.Int64Counter
	deleted      metric.Int64Counter
	retried      metric.Int64Counter
	compensation metric.Int64Counter
	activeGauge  metric.Int64Gauge
	stuckGauge   metric.Int64Gauge
}

// NewSagaMetrics registers the saga instrument set against the given meter.
// Instrument-registration errors are swallowed to a nil instrument (Add/
// Record on a nil instrument panics in the SDK only for misuse, never for
// a nil receiver here — the field stays unused and metrics are simply not
// emitted for that one instrument), matching the teacher's approach of not
// letting metrics wiring fail a request path.
func NewSagaMetrics(meter metric.Meter) *SagaMetrics {
	m := &SagaMetrics{}
	m.started, _ = meter.Int64Counter("saga.started.total", metric.WithDescription("Total number of sagas started"))
	m.completed, _ = meter.Int64Counter("saga.completed.total", metric.WithDescription("Total number of sagas completed"))
	m.failed, _ = meter.Int64Counter("saga.failed.total", metric.WithDescription("Total number of sagas failed"))
	m.compensated, _ = meter.Int64Counter("saga.compensated.total", metric.WithDescription("Total number of sagas compensated"))
	m.deleted, _ = meter.Int64Counter("saga.deleted.total", metric.WithDescription("Total number of sagas deleted"))
	m.retried, _ = meter.Int64Counter("saga.retry.total", metric.WithDescription("Total number of saga step retries"))
	m.compensation, _ = meter.Int64Counter("saga.compensation.total", metric.WithDescription("Total number of compensation commands published"))
	m.activeGauge, _ = meter.Int64Gauge("saga.active.count", metric.WithDescription("Number of active (non-terminal) sagas"))
	m.stuckGauge, _ = meter.Int64Gauge("saga.stuck.count", metric.WithDescription("Number of stuck sagas found by the last sweep"))
	return m
}

func (m *SagaMetrics) RecordSagaStarted(orderNumber string) {
	if m == nil || m.started == nil {
		return
	}
	m.started.Add(context.Background(), 1, metric.WithAttributes(attribute.String("order_number", orderNumber)))
}

func (m *SagaMetrics) RecordSagaCompleted(orderNumber string) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("order_number", orderNumber)))
}

func (m *SagaMetrics) RecordSagaFailed(orderNumber string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("order_number", orderNumber)))
}

func (m *SagaMetrics) RecordSagaCompensated(orderNumber string) {
	if m == nil || m.compensated == nil {
		return
	}
	m.compensated.Add(context.Background(), 1, metric.WithAttributes(attribute.String("order_number", orderNumber)))
}

func (m *SagaMetrics) RecordSagaDeleted(orderNumber string) {
	if m == nil || m.deleted == nil {
		return
	}
	m.deleted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("order_number", orderNumber)))
}

func (m *SagaMetrics) RecordRetry(orderNumber, step string, retryCount int) {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("order_number", orderNumber),
			attribute.String("step", step),
			attribute.Int("retry_count", retryCount),
		))
}

func (m *SagaMetrics) RecordCompensation(orderNumber, step string) {
	if m == nil || m.compensation == nil {
		return
	}
	m.compensation.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("order_number", orderNumber), attribute.String("step", step)))
}

func (m *SagaMetrics) SetActiveCount(ctx context.Context, count int64) {
	if m == nil || m.activeGauge == nil {
		return
	}
	m.activeGauge.Record(ctx, count)
}

func (m *SagaMetrics) SetStuckCount(ctx context.Context, count int64) {
	if m == nil || m.stuckGauge == nil {
		return
	}
	m.stuckGauge.Record(ctx, count)
}
