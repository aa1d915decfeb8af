// Package consumer runs the asynchronous recommendation pipeline worker.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"example.com/fitness/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Outcome is the queue-acknowledgment decision for one delivery.
type Outcome int

const (
	// OutcomeAck removes the message from the queue.
	OutcomeAck Outcome = iota
	// OutcomeRejectNoRequeue removes the message without redelivery. Used for
	// terminal failures: re-running an exhausted retry budget only burns more
	// paid calls.
	OutcomeRejectNoRequeue
	// OutcomeRequeueLater is reserved for brokers with native delayed
	// redelivery. Nothing maps it today; the processor leaves the message
	// uncommitted.
	OutcomeRequeueLater
)

// Handler processes one decoded activity event and decides its acknowledgment.
// Handlers run each event exactly once; bounded retry lives further down.
type Handler interface {
	Handle(ctx context.Context, event events.ActivityTracked) (Outcome, error)
}

// DeadLetterSink records rejected events for investigation and operator replay.
type DeadLetterSink interface {
	Write(ctx context.Context, topic string, event events.ActivityTracked, payload []byte, reason string) error
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithDeadLetterSink records rejected deliveries in the given sink before the
// message is committed away.
func WithDeadLetterSink(sink DeadLetterSink) Option {
	return func(p *Processor) {
		p.dlq = sink
	}
}

// Processor pulls messages from Kafka, decodes them, and translates handler
// outcomes into broker acknowledgments. It is the thin adapter layer: all
// recommendation semantics live in the Handler.
type Processor struct {
	reader  Reader
	handler Handler
	dlq     DeadLetterSink
	logger  *log.Logger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes messages until the context is
// cancelled. One message is in flight at a time per processor; concurrency
// comes from running several processors in the same consumer group.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		outcome, handleErr := p.handler.Handle(ctx, event)
		if ctx.Err() != nil {
			// Shutdown mid-processing: leave the message uncommitted so the
			// broker redelivers it to another worker.
			return ctx.Err()
		}

		switch outcome {
		case OutcomeAck:
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error: %v", commitErr)
			} else {
				recordProcessed(msg.Topic, msg.Time)
			}
		case OutcomeRejectNoRequeue:
			p.logger.Printf("rejecting without requeue (activity=%s): %v", event.ActivityID, handleErr)
			p.deadLetter(ctx, msg, event, handleErr)
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after reject: %v", commitErr)
			} else {
				recordRejected(msg.Topic)
			}
		case OutcomeRequeueLater:
			// Reserved: no commit, the broker redelivers on its own terms.
			p.logger.Printf("requeue requested (activity=%s): %v", event.ActivityID, handleErr)
		default:
			p.logger.Printf("unknown outcome %d (activity=%s), leaving uncommitted", outcome, event.ActivityID)
		}
	}
}

func (p *Processor) deadLetter(ctx context.Context, msg kafka.Message, event events.ActivityTracked, cause error) {
	if p.dlq == nil {
		return
	}
	reason := "handler rejected delivery"
	if cause != nil {
		reason = cause.Error()
	}
	if err := p.dlq.Write(ctx, msg.Topic, event, msg.Value, reason); err != nil {
		p.logger.Printf("dead letter write failed (activity=%s): %v", event.ActivityID, err)
	} else {
		recordDeadLettered(msg.Topic)
	}
}

func decodeMessage(msg kafka.Message) (events.ActivityTracked, error) {
	if eventType, ok := headerValue(msg, "event_type"); ok && string(eventType) != events.EventTypeActivityTracked {
		return events.ActivityTracked{}, fmt.Errorf("unexpected event_type %q", eventType)
	}

	var event events.ActivityTracked
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return events.ActivityTracked{}, err
	}
	if event.ActivityID == "" {
		return events.ActivityTracked{}, errors.New("missing activity_id")
	}
	return event, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
