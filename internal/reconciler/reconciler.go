// Package reconciler runs the two background sweeps described for the
// Reconciler (C5): a stuck-sweep that retries or compensates sagas wedged
// in a processing status, and a retry-sweep hook reserved for a future
// policy the source system itself never filled in beyond a scheduled
// no-op.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/application"
	"github.com/aioutlet/order-saga-coordinator/internal/infrastructure"
	"github.com/aioutlet/order-saga-coordinator/internal/telemetry"
	"github.com/robfig/cron/v3"
)

// Config holds the scheduler cadences and thresholds, all overridable via
// the saga.scheduler.* / saga.stuck.* configuration keys.
type Config struct {
	// StuckSweepInterval is how often the stuck-sweep runs. Default 15m,
	// matching saga.scheduler.stuck-sagas-rate's 900000ms default.
	StuckSweepInterval time.Duration
	// RetrySweepInterval is how often the retry-sweep hook fires. Default
	// 5m, matching saga.scheduler.retry-sagas-rate's 300000ms default.
	RetrySweepInterval time.Duration
	// StuckThreshold is how long a saga may sit in a processing status
	// before the stuck-sweep considers it abandoned. Default 30m.
	StuckThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.StuckSweepInterval <= 0 {
		c.StuckSweepInterval = 15 * time.Minute
	}
	if c.RetrySweepInterval <= 0 {
		c.RetrySweepInterval = 5 * time.Minute
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = 30 * time.Minute
	}
	return c
}

// Reconciler owns the cron scheduler wired to the two sweep jobs. Every
// sweep is guarded by a SweepLock so at most one coordinator instance in a
// fleet runs a given sweep at a time.
type Reconciler struct {
	coordinator *application.Coordinator
	lock        infrastructure.SweepLock
	metrics     *telemetry.SagaMetrics
	log         *slog.Logger
	cfg         Config

	cron *cron.Cron
}

func New(coordinator *application.Coordinator, lock infrastructure.SweepLock, metrics *telemetry.SagaMetrics, log *slog.Logger, cfg Config) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		coordinator: coordinator,
		lock:        lock,
		metrics:     metrics,
		log:         log,
		cfg:         cfg.withDefaults(),
	}
}

// Start schedules both sweeps and returns immediately; the jobs run on the
// cron package's own goroutine until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.cron = cron.New()

	r.cron.Schedule(cron.Every(r.cfg.StuckSweepInterval), cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		r.runStuckSweep(ctx)
	}))

	r.cron.Schedule(cron.Every(r.cfg.RetrySweepInterval), cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		r.runRetrySweep(ctx)
	}))

	r.cron.Start()

	go func() {
		<-ctx.Done()
		stopCtx := r.cron.Stop()
		<-stopCtx.Done()
	}()
}

// Stop blocks until any in-flight sweep finishes.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

const (
	stuckSweepLock = "stuck-sweep"
	retrySweepLock = "retry-sweep"
)

func (r *Reconciler) runStuckSweep(ctx context.Context) {
	acquired, err := r.lock.TryAcquire(ctx, stuckSweepLock, r.cfg.StuckSweepInterval)
	if err != nil {
		r.log.WarnContext(ctx, "stuck sweep lock acquisition failed", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := r.lock.Release(ctx, stuckSweepLock); err != nil {
			r.log.WarnContext(ctx, "stuck sweep lock release failed", "error", err)
		}
	}()

	cutoff := time.Now().Add(-r.cfg.StuckThreshold)
	result, err := r.coordinator.ReconcileStuck(ctx, cutoff)
	if err != nil {
		r.log.ErrorContext(ctx, "stuck sweep failed", "error", err)
		return
	}

	r.log.InfoContext(ctx, "stuck sweep complete",
		"found", result.Found, "retried", result.Retried,
		"compensated", result.Compensated, "errored", result.Errored)

	if r.metrics != nil {
		r.metrics.SetStuckCount(ctx, int64(result.Found))
	}
	if active, err := r.coordinator.CountActive(ctx); err == nil && r.metrics != nil {
		r.metrics.SetActiveCount(ctx, active)
	}
}

// runRetrySweep is a reserved hook: the source scheduler runs it on its own
// cadence but never implements a distinct policy beyond what the
// stuck-sweep already does, and neither does this one. It exists so a
// future, narrower retry policy (e.g. re-driving only sagas within a
// shorter freshness window) has a scheduled place to live without adding a
// second cron wiring.
func (r *Reconciler) runRetrySweep(ctx context.Context) {
	acquired, err := r.lock.TryAcquire(ctx, retrySweepLock, r.cfg.RetrySweepInterval)
	if err != nil {
		r.log.WarnContext(ctx, "retry sweep lock acquisition failed", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := r.lock.Release(ctx, retrySweepLock); err != nil {
			r.log.WarnContext(ctx, "retry sweep lock release failed", "error", err)
		}
	}()
}
