package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vitae/pkg/platform/circuit"
)

// Sink receives stamped events for delivery beyond the process.
// Implementations must be safe for concurrent use.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event Event) error
	Close() error
}

// guardedSink pairs a sink with the breaker that tracks its health.
type guardedSink struct {
	sink    Sink
	breaker *circuit.Breaker
}

// Publisher records events in the Log and fans them out to sinks.
// The log append is the source of truth; sink failures are logged and
// never surface to the caller, so a Kafka or archive outage cannot fail
// a registry operation that has already committed. A per-sink circuit
// breaker keeps an outage from flooding the log: failures warn
// individually until the breaker opens, then only the transitions are
// reported.
type Publisher struct {
	log    *Log
	sinks  []guardedSink
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithSink attaches a delivery sink. Sinks are invoked in registration order.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, guardedSink{
			sink:    sink,
			breaker: circuit.New(sink.Name()),
		})
	}
}

// WithLogger sets a logger for sink failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(log *Log, opts ...Option) *Publisher {
	p := &Publisher{log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit stamps the event with a timestamp (if unset) and a sequence number,
// records it, and forwards it to every sink. The stamped event is returned.
func (p *Publisher) Emit(ctx context.Context, event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	stamped := p.log.Append(event)

	for _, gs := range p.sinks {
		if err := gs.sink.Publish(ctx, stamped); err != nil {
			degraded, change := gs.breaker.RecordFailure()
			if p.logger == nil {
				continue
			}
			if change.Opened {
				p.logger.ErrorContext(ctx, "event sink circuit opened",
					"sink", gs.sink.Name(),
					"kind", stamped.Kind,
					"seq", stamped.Seq,
					"error", err,
				)
			} else if !degraded {
				p.logger.WarnContext(ctx, "event sink publish failed",
					"sink", gs.sink.Name(),
					"kind", stamped.Kind,
					"seq", stamped.Seq,
					"error", err,
				)
			}
			continue
		}
		if _, change := gs.breaker.RecordSuccess(); change.Closed && p.logger != nil {
			p.logger.InfoContext(ctx, "event sink recovered", "sink", gs.sink.Name())
		}
	}
	return stamped
}

// List returns the full ordered event log.
func (p *Publisher) List() []Event {
	return p.log.List()
}

// Close shuts down all sinks and joins their errors.
func (p *Publisher) Close() error {
	var errs []error
	for _, gs := range p.sinks {
		if err := gs.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
