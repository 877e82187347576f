// Package ingest coordinates data acquisition from upstream biomedical sources.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/biolink-io/harvester/internal/config"
)

// JobEvent is one lifecycle notification emitted during a coordination run.
type JobEvent struct {
	Source    string    `json:"source"`
	Status    Status    `json:"status"`
	JobID     string    `json:"job_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher emits job lifecycle events to interested consumers.
// Publishing is best-effort and never participates in correctness.
type EventPublisher interface {
	Publish(ctx context.Context, event JobEvent) error
	Close() error
}

// ErrBrokersRequired is returned when the Kafka publisher has no brokers.
var ErrBrokersRequired = errors.New("at least one kafka broker is required")

// EventsConfig holds Kafka publisher configuration.
type EventsConfig struct {
	Brokers []string
	Topic   string

	BatchTimeout time.Duration
}

// LoadEventsConfig loads Kafka publisher configuration from environment
// variables with fallback to defaults. An empty broker list disables
// publishing.
func LoadEventsConfig() EventsConfig {
	return EventsConfig{
		Brokers:      config.ParseCommaSeparatedList(config.GetEnvStr("HARVESTER_KAFKA_BROKERS", "")),
		Topic:        config.GetEnvStr("HARVESTER_KAFKA_TOPIC", "harvester.ingestion-events"),
		BatchTimeout: config.GetEnvDuration("HARVESTER_KAFKA_BATCH_TIMEOUT", time.Second),
	}
}

// Validate checks the publisher configuration.
func (c EventsConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrBrokersRequired
	}

	return nil
}

// KafkaEventPublisher publishes job lifecycle events to a Kafka topic.
// Messages are keyed by source name so per-source ordering is preserved
// within a partition.
type KafkaEventPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaEventPublisher creates a publisher for the configured topic.
func NewKafkaEventPublisher(cfg EventsConfig, logger *slog.Logger) (*KafkaEventPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
	}

	logger.Info("kafka event publisher configured",
		"brokers", strings.Join(cfg.Brokers, ","),
		"topic", cfg.Topic,
	)

	return &KafkaEventPublisher{writer: writer, logger: logger}, nil
}

// Publish writes one event as a JSON message keyed by source.
func (p *KafkaEventPublisher) Publish(ctx context.Context, event JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.Source),
		Value: payload,
		Time:  event.Timestamp,
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("write job event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
