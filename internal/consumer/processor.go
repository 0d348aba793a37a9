// Package consumer reads lifecycle events from Kafka and dispatches them to handlers.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/activities/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages. A returned error means the message must not be committed.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Message is the decoded representation of a framed lifecycle record.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	Key           string
	EventType     string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetry sets how many times a failing handler is attempted before Run gives up.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		p.backoff = backoff
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader   Reader
	handler  Handler
	logger   *zap.Logger
	attempts int
	backoff  time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		handler:  handler,
		logger:   zap.NewNop(),
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until the context is cancelled. A message whose handler keeps
// failing stops the loop uncommitted, so the group redelivers it after a restart; committing
// a later offset would skip it.
func (p *Processor) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		raw, err := p.reader.FetchMessage(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			p.logger.Warn("fetch message", zap.Error(err))
			continue
		}

		msg, err := newMessage(raw)
		if err != nil {
			recordDecodeError(raw.Topic)
			p.logger.Error("dropping undecodable record",
				zap.String("topic", raw.Topic),
				zap.Int("partition", raw.Partition),
				zap.Int64("offset", raw.Offset),
				zap.Error(err),
			)
			// committed anyway, a poison record would otherwise block the partition
			p.commit(ctx, raw, nil)
			continue
		}

		if err := p.dispatch(ctx, msg); err != nil {
			return fmt.Errorf("handle %s at %s/%d/%d: %w", msg.EventType, msg.Topic, msg.Partition, msg.Offset, err)
		}
		p.commit(ctx, raw, &msg)
	}
	return ctx.Err()
}

// commit acknowledges raw. Processed messages are counted once the commit succeeds.
func (p *Processor) commit(ctx context.Context, raw kafka.Message, processed *Message) {
	if err := p.reader.CommitMessages(ctx, raw); err != nil {
		p.logger.Warn("commit message", zap.Int64("offset", raw.Offset), zap.Error(err))
		return
	}
	if processed != nil {
		recordProcessed(*processed)
	}
}

// dispatch calls the handler up to p.attempts times, sleeping p.backoff between attempts.
func (p *Processor) dispatch(ctx context.Context, msg Message) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = p.handler.Handle(ctx, msg); err == nil {
			return nil
		}
		recordHandlerError(msg)
		p.logger.Warn("handler failed",
			zap.String("event_type", msg.EventType),
			zap.String("key", msg.Key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt >= p.attempts {
			return err
		}
		timer := time.NewTimer(p.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// newMessage unwraps the schema framing of raw and checks the payload is JSON.
func newMessage(raw kafka.Message) (Message, error) {
	headers := make(map[string]string, len(raw.Headers))
	for _, h := range raw.Headers {
		headers[h.Key] = string(h.Value)
	}
	eventType, ok := headers[events.HeaderEventType]
	if !ok {
		return Message{}, fmt.Errorf("missing %s header", events.HeaderEventType)
	}

	schemaID, payload, err := events.DecodeWireFormat(raw.Value)
	if err != nil {
		return Message{}, err
	}
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:         raw.Topic,
		Partition:     raw.Partition,
		Offset:        raw.Offset,
		Timestamp:     raw.Time,
		Key:           string(raw.Key),
		EventType:     eventType,
		SchemaSubject: headers[events.HeaderSchemaSubject],
		SchemaID:      schemaID,
		Payload:       payload,
	}, nil
}
