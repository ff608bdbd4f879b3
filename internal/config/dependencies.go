package config

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/application"
	"github.com/aioutlet/order-saga-coordinator/internal/handlers"
	"github.com/aioutlet/order-saga-coordinator/internal/infrastructure"
	"github.com/aioutlet/order-saga-coordinator/internal/infrastructure/broker"
	"github.com/aioutlet/order-saga-coordinator/internal/reconciler"
	"github.com/aioutlet/order-saga-coordinator/internal/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Dependencies aggregates every constructed component the coordinator
// needs at runtime, grounded on wallet-service/config/dependencies.go's
// shape (DB, adapters, use cases, handlers, telemetry, one struct, one
// Close).
type Dependencies struct {
	DB *sqlx.DB

	SagaRepository *infrastructure.PostgresSagaRepository
	EventLog       *infrastructure.PostgresSagaEventLog

	Broker broker.Adapter

	SweepLock infrastructure.SweepLock
	redis     *redis.Client

	Metrics *telemetry.SagaMetrics

	Coordinator   *application.Coordinator
	EventHandlers *handlers.SagaEventHandlers
	AdminHandlers *handlers.AdminHandlers
	Reconciler    *reconciler.Reconciler

	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, cfg *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	if cfg.Telemetry.Enabled {
		telConfig := telemetry.NewConfigForService(cfg.ServiceName, "1.0.0", cfg.Telemetry.OTLPEndpoint)
		tel, shutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			log.Printf("failed to initialize telemetry: %v", err)
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = shutdown
		}
	}

	db, err := sqlx.Connect("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	deps.SagaRepository = infrastructure.NewPostgresSagaRepository(db)
	deps.EventLog = infrastructure.NewPostgresSagaEventLog(db)

	brokerAdapter, err := broker.New(ctx, broker.Config{
		Provider:     cfg.Messaging.Provider,
		SNSTopicARN:  cfg.AWS.SNSTopicArn,
		SQSQueueURL:  cfg.AWS.SQSQueueURL,
		KafkaBrokers: cfg.Kafka.Brokers,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build broker adapter: %w", err)
	}
	deps.Broker = brokerAdapter

	deps.SweepLock = buildSweepLock(cfg, deps)

	var meter = telemetry.GetMeter(ctx)
	if deps.Telemetry != nil {
		meter = deps.Telemetry.GetMeter()
	}
	deps.Metrics = telemetry.NewSagaMetrics(meter)

	logger := slog.Default().With("service", cfg.ServiceName)

	deps.Coordinator = application.NewCoordinator(deps.SagaRepository, deps.Broker, deps.EventLog, deps.Metrics, logger, cfg.Saga.Retry.MaxAttempts)
	deps.EventHandlers = handlers.NewSagaEventHandlers(deps.Coordinator, logger)
	deps.AdminHandlers = handlers.NewAdminHandlers(deps.SagaRepository)

	deps.Reconciler = reconciler.New(deps.Coordinator, deps.SweepLock, deps.Metrics, logger, reconciler.Config{
		StuckSweepInterval: time.Duration(cfg.Saga.Scheduler.StuckSagasRateMS) * time.Millisecond,
		RetrySweepInterval: time.Duration(cfg.Saga.Scheduler.RetrySagasRateMS) * time.Millisecond,
		StuckThreshold:     time.Duration(cfg.Saga.Stuck.ThresholdMinutes) * time.Minute,
	})

	return deps, nil
}

// buildSweepLock wires a Redis-backed lock when reconciler.lock.redis_url
// is configured, falling back to the in-process mutex for a single
// instance otherwise.
func buildSweepLock(cfg *Config, deps *Dependencies) infrastructure.SweepLock {
	if cfg.Reconciler.Lock.RedisURL == "" {
		return infrastructure.NewInProcessSweepLock()
	}
	opts, err := redis.ParseURL(cfg.Reconciler.Lock.RedisURL)
	if err != nil {
		log.Printf("invalid reconciler.lock.redis_url, falling back to in-process lock: %v", err)
		return infrastructure.NewInProcessSweepLock()
	}
	deps.redis = redis.NewClient(opts)
	return infrastructure.NewRedisSweepLock(deps.redis)
}

// Close tears down every dependency that owns a connection or background
// goroutine, matching wallet-service/config/dependencies.go's
// collect-errors-then-report shape.
func (d *Dependencies) Close() error {
	var errs []error

	if d.Reconciler != nil {
		d.Reconciler.Stop()
	}

	if d.Broker != nil {
		if err := d.Broker.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down broker: %w", err))
		}
	}

	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}
	return nil
}
