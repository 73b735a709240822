// Package events publishes diary domain events (food, exercise and weight logs,
// profile configuration) to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// DefaultTopicPrefix is prepended to every event type to build the topic name.
const DefaultTopicPrefix = "calcounter"

// Publisher delivers domain events.
type Publisher interface {
	Publish(ctx context.Context, evt models.DomainEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.DomainEvent) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

// messageWriter is the subset of KafkaProducer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer lazily manages writers per topic.
type KafkaProducer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerForTopic(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}

// KafkaPublisher encodes domain events as JSON keyed by user id.
type KafkaPublisher struct {
	writer messageWriter
	prefix string
}

// NewKafkaPublisher creates a publisher writing to "<prefix>.<event type>" topics.
func NewKafkaPublisher(brokers []string, prefix string) *KafkaPublisher {
	return newKafkaPublisher(NewKafkaProducer(brokers), prefix)
}

func newKafkaPublisher(w messageWriter, prefix string) *KafkaPublisher {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &KafkaPublisher{writer: w, prefix: prefix}
}

// Topic returns the topic name for an event type.
func (p *KafkaPublisher) Topic(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish writes one event synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, evt models.DomainEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", evt.Type, err)
	}
	topic := p.Topic(evt.Type)
	msg := kafka.Message{
		Key:   []byte(evt.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
			{Key: "event-id", Value: []byte(evt.ID)},
		},
		Time: evt.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, topic, msg); err != nil {
		slog.Error("KafkaPublisher Publish failed", "error", err, "topic", topic, "userID", evt.UserID)
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	slog.Debug("KafkaPublisher Publish succeeded", "topic", topic, "userID", evt.UserID, "eventID", evt.ID)
	return nil
}

// Close releases the underlying writers.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
