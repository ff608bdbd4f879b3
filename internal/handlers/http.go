package handlers

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports whether a dependency the coordinator needs is
// reachable — implemented by broker.Adapter.
type HealthChecker interface {
	IsHealthy(ctx context.Context) error
}

// NewMetricsHandler exposes the otel Prometheus exporter's registry.
func NewMetricsHandler() http.Handler {
	return promhttp.Handler()
}

// NewHealthHandler reports 200 only while every checker passed to it reports
// healthy, so an outage of a checked dependency (the broker, as wired in
// main) flips readiness without the process needing to exit. The database
// is not checked.
func NewHealthHandler(checkers ...HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checkers {
			if err := c.IsHealthy(r.Context()); err != nil {
				http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
