package broker

import "context"

// Config is the subset of messaging.* configuration the factory needs to
// pick and initialize a variant.
type Config struct {
	Provider string // messaging.provider: "cloud-bus" or "kafka"

	SNSTopicARN string
	SQSQueueURL string

	KafkaBrokers []string
}

// New selects and initializes the broker adapter variant named by
// cfg.Provider. An unrecognized provider fails loudly rather than
// defaulting silently to any particular variant.
func New(ctx context.Context, cfg Config) (Adapter, error) {
	var adapter Adapter
	switch cfg.Provider {
	case "cloud-bus", "":
		cb, err := NewCloudBusAdapter(cfg.SNSTopicARN, cfg.SQSQueueURL)
		if err != nil {
			return nil, err
		}
		adapter = cb
	case "kafka":
		adapter = NewKafkaAdapter(cfg.KafkaBrokers)
	default:
		return nil, &ErrUnsupportedProvider{Provider: cfg.Provider}
	}

	if err := adapter.Initialize(ctx); err != nil {
		return nil, err
	}

	return NewCircuitBreakingAdapter(adapter), nil
}
