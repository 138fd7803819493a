// Package compliance provides a fail-closed notary publisher.
//
// Publisher validates and stamps each event before handing it to the
// underlying audit.Store. Writes are synchronous: if the notary rejects the
// event the error is returned and the dispatching operation stays pending.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "crossledger/pkg/platform/audit"
)

// Publisher emits audit events with fail-closed semantics.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New creates a publisher over store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Append validates the event, fills the category and timestamp when absent,
// and writes it synchronously. It satisfies audit.Store.
func (p *Publisher) Append(ctx context.Context, topic string, event audit.Event) (uint64, error) {
	if topic == "" {
		return 0, fmt.Errorf("audit event requires a topic")
	}
	if event.Action == "" {
		return 0, fmt.Errorf("audit event requires Action")
	}
	if event.ID.IsNil() {
		return 0, fmt.Errorf("audit event requires ID")
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	seq, err := p.store.Append(ctx, topic, event)
	if err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "notary append failed",
				"topic", topic,
				"action", event.Action,
				"event_id", event.ID.String(),
				"error", err,
			)
		}
		return 0, fmt.Errorf("notary append failed: %w", err)
	}
	return seq, nil
}
