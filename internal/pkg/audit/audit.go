// Package audit records ledger events for downstream consumers. Recording is
// fire-and-forget: a sink never fails the operation that produced the event.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/yigit/bursar/internal/pkg/logger"
)

// Event types emitted by the ledger.
const (
	EventObligationCreated  = "obligation.created"
	EventObligationAmended  = "obligation.amended"
	EventObligationDeleted  = "obligation.deleted"
	EventPaymentRecorded    = "payment.recorded"
	EventObligationSettled  = "obligation.settled"
	EventStatusesReconciled = "statuses.reconciled"
	EventStatementArchived  = "statement.archived"
)

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, eventType string, details map[string]interface{})
}

// Nop discards every event.
type Nop struct{}

// Record does nothing.
func (Nop) Record(context.Context, string, map[string]interface{}) {}

// LogSink writes events as structured log lines.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a LogSink on lgr.
func NewLogSink(lgr zerolog.Logger) *LogSink {
	return &LogSink{log: lgr.With().Str("component", "audit").Logger()}
}

// Record logs the event at info level.
func (s *LogSink) Record(_ context.Context, eventType string, details map[string]interface{}) {
	s.log.Info().Str("event", eventType).Fields(details).Msg("Audit event")
}

// StreamAdder is the subset of the Redis client the stream sink needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// DefaultStreamBuffer is how many events RedisStreamSink queues before dropping
const DefaultStreamBuffer = 1024

type streamEvent struct {
	eventType  string
	payload    string
	recordedAt time.Time
}

// RedisStreamSink appends events to a Redis stream with XADD. Record only queues the
// event; a background goroutine writes it, so a slow Redis never delays the caller.
type RedisStreamSink struct {
	client  StreamAdder
	stream  string
	maxLen  int64
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan streamEvent
	done   chan struct{}
}

// NewRedisStreamSink creates a sink writing to stream, trimmed to roughly maxLen entries.
// Close must be called to flush queued events.
func NewRedisStreamSink(client StreamAdder, stream string, maxLen int64) *RedisStreamSink {
	return newRedisStreamSink(client, stream, maxLen, DefaultStreamBuffer)
}

func newRedisStreamSink(client StreamAdder, stream string, maxLen int64, buffer int) *RedisStreamSink {
	s := &RedisStreamSink{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		timeout: 2 * time.Second,
		events:  make(chan streamEvent, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Record queues the event. It never blocks: events are dropped when the queue is full
// or the sink is closed.
func (s *RedisStreamSink) Record(_ context.Context, eventType string, details map[string]interface{}) {
	payload, err := json.Marshal(details)
	if err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("Failed to encode audit event")
		return
	}
	e := streamEvent{eventType: eventType, payload: string(payload), recordedAt: time.Now().UTC()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logger.Warn().Str("event", eventType).Msg("Audit stream closed, dropping event")
		return
	}
	select {
	case s.events <- e:
	default:
		logger.Warn().Str("event", eventType).Str("stream", s.stream).Msg("Audit stream queue full, dropping event")
	}
}

// Close stops accepting events and waits until the queued ones are written.
func (s *RedisStreamSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *RedisStreamSink) run() {
	defer close(s.done)
	for e := range s.events {
		s.append(e)
	}
}

// append writes one event. Errors are logged and dropped.
func (s *RedisStreamSink) append(e streamEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: map[string]interface{}{
			"type":       e.eventType,
			"details":    e.payload,
			"recordedAt": e.recordedAt.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		logger.Warn().Err(err).Str("event", e.eventType).Str("stream", s.stream).Msg("Failed to append audit event")
	}
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Record forwards to every sink.
func (m Multi) Record(ctx context.Context, eventType string, details map[string]interface{}) {
	for _, s := range m {
		s.Record(ctx, eventType, details)
	}
}
