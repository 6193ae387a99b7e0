// Package publisher fans high-severity security events out to the SIEM topic.
// The audit store remains the source of truth: publishing is best-effort and
// never blocks or fails the Record path.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"aegis/internal/audit"
)

// Kafka publishes security events to a Kafka topic via franz-go.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka creates the SIEM publisher. Returns nil when no brokers are
// configured (fan-out disabled).
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// Publish produces the event asynchronously, keyed by subject so one user's
// events stay ordered within a partition. Delivery failures are logged, not
// returned: the durable store already holds the event.
func (k *Kafka) Publish(ctx context.Context, event *audit.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.SubjectUserID),
		Value: payload,
	}
	k.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil && k.logger != nil {
			k.logger.Warn("siem publish failed",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
