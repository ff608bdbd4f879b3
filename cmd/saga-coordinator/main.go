package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/config"
	"github.com/aioutlet/order-saga-coordinator/internal/handlers"
	"github.com/aioutlet/order-saga-coordinator/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.ReadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	fmt.Printf("Starting %s in %s environment on port %s\n", cfg.ServiceName, cfg.Env, cfg.Port)

	ctx := context.Background()
	deps, err := config.BuildDependencies(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build dependencies: %v", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Printf("error closing dependencies: %v", err)
		}
	}()

	subscribeCtx, cancelSubscribe := context.WithCancel(context.Background())
	defer cancelSubscribe()

	for _, topic := range inboundTopics {
		topic := topic
		go func() {
			if err := deps.Broker.Subscribe(subscribeCtx, topic, deps.EventHandlers); err != nil {
				log.Printf("error subscribing to %s: %v", topic, err)
			}
		}()
	}

	deps.Reconciler.Start(subscribeCtx)

	router := setupRouter(cfg, deps)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Printf("Shutting down %s...\n", cfg.ServiceName)
	cancelSubscribe()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	fmt.Printf("%s stopped\n", cfg.ServiceName)
}

// inboundTopics are every topic the event ingress (C1) subscribes to.
var inboundTopics = []string{
	"order.created",
	"order.cancelled",
	"order.shipped",
	"order.delivered",
	"order.deleted",
	"payment.processed",
	"payment.failed",
	"inventory.reserved",
	"inventory.failed",
	"shipping.prepared",
	"shipping.failed",
}

func setupRouter(cfg *config.Config, deps *config.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	if deps.Telemetry != nil {
		r.Use(telemetry.Middleware(deps.Telemetry))
	}

	r.Get("/health", handlers.NewHealthHandler(deps.Broker))
	r.Handle("/metrics", handlers.NewMetricsHandler())

	deps.AdminHandlers.RegisterRoutes(r)

	return r
}
