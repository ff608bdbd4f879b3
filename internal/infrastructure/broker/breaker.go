package broker

import (
	"context"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakingAdapter wraps any Adapter's Publish call with a circuit
// breaker so a broker outage degrades into fast failures (re-raised as
// TRANSIENT_IO upstream) instead of piling up blocked publish calls.
type CircuitBreakingAdapter struct {
	Adapter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreakingAdapter trips after 5 consecutive publish failures and
// allows one probe request after a 30s cooldown.
func NewCircuitBreakingAdapter(adapter Adapter) *CircuitBreakingAdapter {
	settings := gobreaker.Settings{
		Name:    "broker-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &CircuitBreakingAdapter{
		Adapter: adapter,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (a *CircuitBreakingAdapter) Publish(ctx context.Context, evts ...*events.Event) error {
	_, err := a.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, a.Adapter.Publish(ctx, evts...)
	})
	return err
}
