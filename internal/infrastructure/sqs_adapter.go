package infrastructure

import (
	"context"
	"log/slog"

	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
)

// SQSSubscriberAdapter defers queue setup to the first Subscribe call so the
// coordinator can construct its broker before it knows which saga-event
// topics it will be dispatching, then hands every inbound message straight
// to the handler passed to Subscribe (handlers.SagaEventHandlers in main).
type SQSSubscriberAdapter struct {
	sqsSubscriber *SQSEventSubscriber
	isRunning     bool
	queueURL      string
	log           *slog.Logger
}

// NewSQSSubscriberAdapter targets a single SQS queue; the saga coordinator
// fans every subscribed topic through the one queue the cloud bus provisions
// for it, so there is no per-topic queue routing here.
func NewSQSSubscriberAdapter(queueURL string) (*SQSSubscriberAdapter, error) {
	return &SQSSubscriberAdapter{
		queueURL: queueURL,
		log:      slog.Default().With("component", "sqs_subscriber"),
	}, nil
}

// sagaEventHandler bridges events.EventHandler into the subscriber's own
// EventHandler shape, which additionally carries a handler ID for logging.
type sagaEventHandler struct {
	handler events.EventHandler
}

func (a *sagaEventHandler) HandlerID() string {
	return "saga-coordinator-ingress"
}

func (a *sagaEventHandler) Handle(ctx context.Context, event *events.Event) error {
	return a.handler.Handle(ctx, event)
}

// Subscribe implements events.Subscriber by standing up the SQS poll loop
// on first call; eventType is accepted for interface compatibility but the
// queue itself already carries only the topics the coordinator subscribed
// SNS to, so every message that arrives is dispatched unconditionally.
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, eventType string, handler events.EventHandler) error {
	if s.isRunning {
		return errors.New("sqs subscriber already running")
	}

	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}

	sqsClient := sqs.NewFromConfig(cfg)
	s.sqsSubscriber = NewSQSEventSubscriber(sqsClient, s.queueURL, &sagaEventHandler{handler: handler})

	if err := s.sqsSubscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	s.isRunning = true
	s.log.Info("sqs subscriber started", "queue_url", s.queueURL, "event_type", eventType)
	return nil
}

// Close stops the subscriber.
func (s *SQSSubscriberAdapter) Close() error {
	if !s.isRunning || s.sqsSubscriber == nil {
		return nil
	}

	if err := s.sqsSubscriber.Stop(context.Background()); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.isRunning = false
	s.log.Info("sqs subscriber stopped", "queue_url", s.queueURL)
	return nil
}
