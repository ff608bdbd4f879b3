package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aioutlet/order-saga-coordinator/internal/events"
	"github.com/pkg/errors"
	kafka "github.com/segmentio/kafka-go"
)

// KafkaAdapter is the Kafka-style log broker variant: every outbound
// event's topic becomes the Kafka topic name, keyed by aggregate id so a
// single saga's events stay in partition order.
type KafkaAdapter struct {
	brokers []string
	writer  *kafka.Writer

	mu      sync.Mutex
	readers []*kafka.Reader
}

func NewKafkaAdapter(brokers []string) *KafkaAdapter {
	return &KafkaAdapter{brokers: brokers}
}

func (a *KafkaAdapter) ProviderName() string {
	return "kafka"
}

func (a *KafkaAdapter) Initialize(ctx context.Context) error {
	a.writer = &kafka.Writer{
		Addr:     kafka.TCP(a.brokers...),
		Balancer: &kafka.Hash{},
	}
	return nil
}

func (a *KafkaAdapter) Publish(ctx context.Context, evts ...*events.Event) error {
	if a.writer == nil {
		return errors.New("kafka adapter not initialized")
	}

	msgs := make([]kafka.Message, 0, len(evts))
	for _, e := range evts {
		payload, err := json.Marshal(e)
		if err != nil {
			return errors.Wrap(err, "failed to marshal event")
		}
		msgs = append(msgs, kafka.Message{
			Topic: string(e.Topic),
			Key:   []byte(e.AggregateID.String()),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "X-Correlation-Id", Value: []byte(e.CorrelationID.String())},
			},
		})
	}

	if err := a.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "failed to write kafka messages")
	}
	return nil
}

// Subscribe starts a dedicated reader goroutine for eventType, treated as
// the Kafka topic name, feeding every message to handler until ctx is done.
func (a *KafkaAdapter) Subscribe(ctx context.Context, eventType string, handler events.EventHandler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: a.brokers,
		Topic:   eventType,
		GroupID: "order-saga-coordinator",
	})

	a.mu.Lock()
	a.readers = append(a.readers, reader)
	a.mu.Unlock()

	go func() {
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				return
			}

			var evt events.Event
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				continue
			}
			_ = handler.Handle(ctx, &evt)
		}
	}()

	return nil
}

func (a *KafkaAdapter) IsHealthy(ctx context.Context) error {
	if a.writer == nil {
		return errors.New("kafka adapter not initialized")
	}
	conn, err := kafka.DialContext(ctx, "tcp", a.brokers[0])
	if err != nil {
		return errors.Wrap(err, "kafka brokers unreachable")
	}
	return conn.Close()
}

func (a *KafkaAdapter) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, r := range a.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.writer != nil {
		if err := a.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
