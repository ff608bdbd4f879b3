package broker

import (
	"context"

	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aioutlet/order-saga-coordinator/internal/infrastructure"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
)

// CloudBusAdapter is the SNS-publish / SQS-subscribe broker variant — the
// cloud bus option named in the outbound publisher's capability set.
type CloudBusAdapter struct {
	publisher  *infrastructure.SNSPublisherAdapter
	subscriber *infrastructure.SQSSubscriberAdapter
	queueURL   string
	sqsClient  *sqs.Client
}

// NewCloudBusAdapter wires an SNS topic (publish side) to an SQS queue
// (subscribe side) — the same pair of AWS primitives used for every topic.
func NewCloudBusAdapter(topicArn, queueURL string) (*CloudBusAdapter, error) {
	publisher, err := infrastructure.NewSNSPublisherAdapter(topicArn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create SNS publisher")
	}

	subscriber, err := infrastructure.NewSQSSubscriberAdapter(queueURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create SQS subscriber")
	}

	return &CloudBusAdapter{publisher: publisher, subscriber: subscriber, queueURL: queueURL}, nil
}

func (a *CloudBusAdapter) ProviderName() string {
	return "cloud-bus"
}

func (a *CloudBusAdapter) Publish(ctx context.Context, evts ...*events.Event) error {
	return a.publisher.Publish(ctx, evts...)
}

func (a *CloudBusAdapter) Subscribe(ctx context.Context, eventType string, handler events.EventHandler) error {
	return a.subscriber.Subscribe(ctx, eventType, handler)
}

func (a *CloudBusAdapter) Initialize(ctx context.Context) error {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}
	a.sqsClient = sqs.NewFromConfig(cfg)
	return nil
}

// IsHealthy checks that the configured queue is reachable.
func (a *CloudBusAdapter) IsHealthy(ctx context.Context) error {
	if a.sqsClient == nil {
		return errors.New("cloud bus adapter not initialized")
	}
	_, err := a.sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{QueueUrl: &a.queueURL})
	if err != nil {
		return errors.Wrap(err, "sqs queue unreachable")
	}
	return nil
}

func (a *CloudBusAdapter) Shutdown(ctx context.Context) error {
	if err := a.subscriber.Close(); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}
	return a.publisher.Close()
}
