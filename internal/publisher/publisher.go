// Package publisher emits activity events to Kafka after storage writes.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher serialises tracked activities and hands them to the broker.
// Callers own the failure policy; Publish itself never retries.
type Publisher struct {
	writer messageWriter
}

// New creates a Publisher writing to the given topic.
func New(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

// NewWithWriter wires a custom writer, used by tests.
func NewWithWriter(writer messageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Publish serialises the activity into an ActivityTracked event keyed by
// activity ID and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, activity domain.Activity) error {
	payload, err := json.Marshal(events.ActivityTracked{
		ActivityID:     activity.ID,
		KeycloakID:     activity.KeycloakID,
		ActivityType:   string(activity.ActivityType),
		DurationMin:    activity.DurationMin,
		CaloriesBurned: activity.CaloriesBurned,
		StartedAt:      activity.StartedAt,
		Metrics:        activity.Metrics,
		CreatedAt:      activity.CreatedAt,
		UpdatedAt:      activity.UpdatedAt,
	})
	if err != nil {
		recordPublishFailed()
		return err
	}

	msg := kafka.Message{
		Key:   []byte(activity.ID),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.EventTypeActivityTracked)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		recordPublishFailed()
		return err
	}
	recordPublished()
	return nil
}

// Close releases the underlying writer when it owns a connection.
func (p *Publisher) Close() error {
	if closer, ok := p.writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
