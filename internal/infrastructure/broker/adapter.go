// Package broker defines the polymorphic broker adapter capability set the
// Outbound Publisher (C4) is built on, plus its concrete variants.
package broker

import (
	"context"

	"github.com/aioutlet/order-saga-coordinator/internal/events"
)

// Adapter is the capability set every broker variant must satisfy:
// publish, isHealthy, providerName, initialize, shutdown. Variant selection
// happens once, at startup, via messaging.provider; an unsupported
// selection must fail loudly rather than silently falling back.
type Adapter interface {
	events.Publisher
	events.Subscriber

	ProviderName() string
	IsHealthy(ctx context.Context) error
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ErrUnsupportedProvider is returned by New for an unrecognized
// messaging.provider configuration value.
type ErrUnsupportedProvider struct {
	Provider string
}

func (e *ErrUnsupportedProvider) Error() string {
	return "unsupported messaging provider: " + e.Provider
}
