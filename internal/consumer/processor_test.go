package consumer

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fitness/internal/events"
)

func trackedMessage(offset int64, payload string) kafka.Message {
	return kafka.Message{
		Topic:     "activity_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     []byte(payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.EventTypeActivityTracked)},
		},
	}
}

func TestProcessorCommitsOnAck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := trackedMessage(10, `{"activity_id":"act-1","keycloak_id":"user-1","activity_type":"running"}`)

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{outcome: OutcomeAck}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "act-1", handler.last.ActivityID)
	require.Equal(t, "user-1", handler.last.KeycloakID)
}

func TestProcessorRejectWritesDeadLetterThenCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := trackedMessage(11, `{"activity_id":"act-2","keycloak_id":"user-1","activity_type":"running"}`)

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{outcome: OutcomeRejectNoRequeue, err: errors.New("budget spent")}
	sink := &stubSink{}

	processor := NewProcessor(reader, handler,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithDeadLetterSink(sink),
	)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, 1, sink.calls)
	require.Equal(t, "act-2", sink.lastEvent.ActivityID)
	require.Equal(t, "budget spent", sink.lastReason)
	require.JSONEq(t, string(msg.Value), string(sink.lastPayload))
}

func TestProcessorRejectCommitsWithoutSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := trackedMessage(12, `{"activity_id":"act-3","keycloak_id":"user-1","activity_type":"yoga"}`)

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{outcome: OutcomeRejectNoRequeue, err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, reader.commitCalls)
}

func TestProcessorRequeueLeavesUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := trackedMessage(13, `{"activity_id":"act-4","keycloak_id":"user-1","activity_type":"cardio"}`)

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{outcome: OutcomeRequeueLater, err: errors.New("later")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := []kafka.Message{
		trackedMessage(20, `not json at all`),
		trackedMessage(21, `{"keycloak_id":"user-1"}`),
		{
			Topic:  "activity_events",
			Offset: 22,
			Value:  []byte(`{"activity_id":"act-5"}`),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte("exercise.created")},
			},
		},
	}

	reader := &stubReader{messages: cases, after: contextCanceled}
	handler := &stubHandler{outcome: OutcomeAck}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Poison pills are committed away without reaching the handler.
	require.Equal(t, 0, handler.calls)
	require.Equal(t, len(cases), reader.commitCalls)
}

func TestProcessorStopsUncommittedOnShutdownMidHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := trackedMessage(30, `{"activity_id":"act-6","keycloak_id":"user-1","activity_type":"running"}`)

	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{outcome: OutcomeAck, during: cancel}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls   int
	outcome Outcome
	err     error
	last    events.ActivityTracked
	during  func()
}

func (h *stubHandler) Handle(_ context.Context, event events.ActivityTracked) (Outcome, error) {
	h.calls++
	h.last = event
	if h.during != nil {
		h.during()
	}
	return h.outcome, h.err
}

type stubSink struct {
	calls       int
	lastEvent   events.ActivityTracked
	lastPayload []byte
	lastReason  string
	err         error
}

func (s *stubSink) Write(_ context.Context, _ string, event events.ActivityTracked, payload []byte, reason string) error {
	s.calls++
	s.lastEvent = event
	s.lastPayload = payload
	s.lastReason = reason
	return s.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
