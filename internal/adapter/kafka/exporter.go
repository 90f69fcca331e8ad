// Package kafka publishes persisted events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// messageWriter is the subset of *kafka.Writer the exporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Exporter publishes each event as JSON, keyed by agent id so one agent's
// events stay ordered within a partition.
type Exporter struct {
	writer messageWriter
	topic  string
}

// NewExporter creates an asynchronous exporter. Delivery failures are logged
// and never reach the caller.
func NewExporter(brokers []string, topic string) *Exporter {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Warn("Kafka export failed", "topic", topic, "messages", len(messages), "error", err)
			}
		},
	}
	return &Exporter{writer: w, topic: topic}
}

// Export queues ev for publishing.
func (e *Exporter) Export(ctx context.Context, ev *domain.NormalizedEvent) error {
	msg, err := newMessage(ev)
	if err != nil {
		return err
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to export event %s: %w", ev.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (e *Exporter) Close() error {
	return e.writer.Close()
}

func newMessage(ev *domain.NormalizedEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.AgentID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "scope", Value: []byte(ev.Scope().String())},
		},
		Time: time.UnixMilli(ev.Ts),
	}, nil
}
