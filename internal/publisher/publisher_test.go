package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/events"
)

type stubWriter struct {
	written []kafka.Message
	err     error
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func TestPublishSerialisesTrackedEvent(t *testing.T) {
	writer := &stubWriter{}
	pub := NewWithWriter(writer)

	started := time.Date(2026, time.August, 30, 7, 15, 0, 0, time.UTC)
	activity := domain.Activity{
		ID:             "act-1",
		KeycloakID:     "user-1",
		ActivityType:   domain.ActivityRunning,
		DurationMin:    45,
		CaloriesBurned: 400,
		StartedAt:      started,
		Metrics:        map[string]any{"distance_km": 8.2},
		CreatedAt:      started.Add(46 * time.Minute),
		UpdatedAt:      started.Add(46 * time.Minute),
	}

	require.NoError(t, pub.Publish(context.Background(), activity))
	require.Len(t, writer.written, 1)

	msg := writer.written[0]
	require.Equal(t, "act-1", string(msg.Key))

	var header *kafka.Header
	for i := range msg.Headers {
		if msg.Headers[i].Key == "event_type" {
			header = &msg.Headers[i]
		}
	}
	require.NotNil(t, header)
	require.Equal(t, events.EventTypeActivityTracked, string(header.Value))

	var event events.ActivityTracked
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	require.Equal(t, "act-1", event.ActivityID)
	require.Equal(t, "user-1", event.KeycloakID)
	require.Equal(t, "running", event.ActivityType)
	require.Equal(t, 45, event.DurationMin)
	require.True(t, event.StartedAt.Equal(started))
}

func TestPublishPropagatesWriterError(t *testing.T) {
	writer := &stubWriter{err: errors.New("broker unreachable")}
	pub := NewWithWriter(writer)

	err := pub.Publish(context.Background(), domain.Activity{ID: "act-2"})
	require.Error(t, err)
}
