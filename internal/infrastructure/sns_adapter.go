package infrastructure

import (
	"context"
	"log/slog"

	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/pkg/errors"
)

// SNSPublisherAdapter is the events.Publisher side of the cloud bus: every
// saga event the coordinator records — step commands, compensation undos,
// lifecycle notifications — fans out through this one SNS topic.
type SNSPublisherAdapter struct {
	snsPublisher *SNSEventPublisher
	log          *slog.Logger
}

// NewSNSPublisherAdapter loads AWS config from the environment, which also
// picks up AWS_ENDPOINT_URL when the coordinator is pointed at a local SNS
// emulator for integration testing.
func NewSNSPublisherAdapter(topicArn string) (*SNSPublisherAdapter, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	snsClient := sns.NewFromConfig(cfg)
	return &SNSPublisherAdapter{
		snsPublisher: NewSNSEventPublisher(snsClient, topicArn),
		log:          slog.Default().With("component", "sns_publisher"),
	}, nil
}

// Publish implements events.Publisher.
func (p *SNSPublisherAdapter) Publish(ctx context.Context, evts ...*events.Event) error {
	if err := p.snsPublisher.Publish(ctx, evts...); err != nil {
		p.log.Error("saga event publish failed", "event_count", len(evts), "error", err)
		return err
	}
	return nil
}

// Close is a no-op: the SNS client holds no connection to release.
func (p *SNSPublisherAdapter) Close() error {
	return nil
}
