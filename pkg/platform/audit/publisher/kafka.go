// Package publisher provides audit event sinks. The Kafka publisher is the
// production sink: events are keyed by the affected account so per-account
// ordering survives partitioning, and consumers replay the compliance trail
// from the topic.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "custodia/pkg/platform/audit"
)

// KafkaPublisher emits audit events to a Kafka topic via franz-go.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures a KafkaPublisher.
type Option func(*KafkaPublisher)

// WithLogger sets the structured logger used for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// NewKafka constructs a Kafka-backed audit publisher.
func NewKafka(brokers []string, topic string, opts ...Option) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &KafkaPublisher{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit publishes the event. Delivery is asynchronous: a broker outage must
// not stall ledger mutations, so failures are logged rather than propagated.
// The outbox store is the durable trail; Kafka is the distribution channel.
func (p *KafkaPublisher) Emit(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(partitionKey(event)),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && p.logger != nil {
			p.logger.Error("audit event delivery failed",
				"topic", p.topic,
				"action", event.Action,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}

// partitionKey keeps all events for one account on one partition. Events
// with no account (lifecycle transitions, engine swaps) share a key so the
// control-plane history is totally ordered too.
func partitionKey(event audit.Event) string {
	if !event.From.IsZero() {
		return event.From.String()
	}
	if !event.To.IsZero() {
		return event.To.String()
	}
	if !event.Actor.IsZero() {
		return event.Actor.String()
	}
	return "ledger"
}
