// Package dispatch drains the outbox: it anchors each committed operation on
// the ledger, notarizes its audit event and mints certificates, strictly in
// enqueue order and always outside component transactions.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"crossledger/internal/ledger"
	"crossledger/internal/ledger/outbox"
	"crossledger/internal/platform/metrics"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/audit"
	"crossledger/pkg/platform/circuit"
	"crossledger/pkg/requestcontext"
)

// Outbox is the queue of committed operations.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]outbox.Entry, error)
	MarkDispatched(ctx context.Context, id domain.RecordID, receipt outbox.Receipt) error
	MarkFailed(ctx context.Context, id domain.RecordID, cause error) error
	PendingCount() int
}

// Notary appends audit events to an ordered per-topic log. audit.Store
// implementations satisfy it.
type Notary interface {
	Append(ctx context.Context, topic string, event audit.Event) (uint64, error)
}

// certificates maps operation kinds to the token class minted for them.
var certificates = map[audit.Action]ledger.TokenClass{
	audit.EventEntityRegistered: ledger.TokenIdentity,
	audit.EventCreditsAwarded:   ledger.TokenCarbonCredit,
}

// Dispatcher moves outbox entries to the external collaborators.
type Dispatcher struct {
	outbox    Outbox
	submitter ledger.Submitter
	notary    Notary
	minter    ledger.TokenMinter
	breaker   *circuit.Breaker
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithMinter enables certificate minting. Without it no tokens are minted.
func WithMinter(m ledger.TokenMinter) Option {
	return func(d *Dispatcher) {
		d.minter = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(d *Dispatcher) {
		d.breaker = b
	}
}

// WithBatchSize caps how many entries one Drain handles. Zero or less drains
// everything pending.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		d.batchSize = n
	}
}

func WithInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

func New(box Outbox, submitter ledger.Submitter, notary Notary, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		outbox:    box,
		submitter: submitter,
		notary:    notary,
		breaker:   circuit.New("ledger-dispatch"),
		batchSize: 100,
		interval:  time.Second,
		tracer:    otel.Tracer("crossledger/dispatch"),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result summarizes one Drain call.
type Result struct {
	Dispatched int
	Skipped    bool
}

// Drain dispatches one batch in order. The first failure is recorded on its
// entry and stops the batch so later operations never overtake it. While
// the breaker is open the batch is skipped.
func (d *Dispatcher) Drain(ctx context.Context) (Result, error) {
	defer func() { d.metrics.SetOutboxPending(d.outbox.PendingCount()) }()

	if !d.breaker.Allow() {
		d.metrics.IncDispatchFailure("skipped")
		return Result{Skipped: true}, nil
	}

	entries, err := d.outbox.Pending(ctx, d.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("load pending operations: %w", err)
	}

	var res Result
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := d.dispatch(ctx, e.Operation); err != nil {
			if markErr := d.outbox.MarkFailed(ctx, e.Operation.ID, err); markErr != nil {
				return res, fmt.Errorf("mark %s failed: %w", e.Operation.ID, markErr)
			}
			if _, change := d.breaker.RecordFailure(); change.Opened {
				d.logger.WarnContext(ctx, "dispatch breaker opened", "breaker", d.breaker.Name())
			}
			return res, err
		}
		if _, change := d.breaker.RecordSuccess(); change.Closed {
			d.logger.InfoContext(ctx, "dispatch breaker closed", "breaker", d.breaker.Name())
		}
		res.Dispatched++
	}
	return res, nil
}

// Run drains on every tick until ctx is cancelled. Dispatch failures are
// logged and retried on the next tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := d.Drain(ctx); err != nil && ctx.Err() == nil {
				d.logger.ErrorContext(ctx, "outbox drain stopped", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, op ledger.Operation) (err error) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "dispatch "+string(op.Kind), trace.WithAttributes(
		attribute.String("operation.id", op.ID.String()),
		attribute.String("operation.module", string(op.Module)),
		attribute.String("operation.kind", string(op.Kind)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var (
		confirmation ledger.Confirmation
		notarySeq    uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := d.submitter.Submit(gctx, op)
		if err != nil {
			d.metrics.IncDispatchFailure("submit")
			return fmt.Errorf("submit %s: %w", op.ID, err)
		}
		confirmation = c
		return nil
	})
	g.Go(func() error {
		seq, err := d.notary.Append(gctx, string(op.Module), op.Event(requestcontext.RequestID(ctx)))
		if err != nil {
			d.metrics.IncDispatchFailure("notarize")
			return fmt.Errorf("notarize %s: %w", op.ID, err)
		}
		notarySeq = seq
		return nil
	})
	if err := g.Wait(); err != nil {
		d.logger.ErrorContext(ctx, "operation dispatch failed",
			"operation_id", op.ID,
			"kind", op.Kind,
			"error", err,
		)
		return err
	}

	receipt := outbox.Receipt{
		Confirmation: confirmation,
		NotarySeq:    notarySeq,
		DispatchedAt: requestcontext.Now(ctx),
	}
	if class, ok := certificates[op.Kind]; ok && d.minter != nil {
		serial, err := d.minter.Mint(ctx, class, op.Payload)
		if err != nil {
			d.metrics.IncDispatchFailure("mint")
			d.logger.ErrorContext(ctx, "certificate mint failed",
				"operation_id", op.ID,
				"class", class,
				"error", err,
			)
			return fmt.Errorf("mint %s for %s: %w", class, op.ID, err)
		}
		receipt.TokenSerial = serial
		span.SetAttributes(attribute.Int64("token.serial", int64(serial)))
	}

	if err := d.outbox.MarkDispatched(ctx, op.ID, receipt); err != nil {
		return fmt.Errorf("mark %s dispatched: %w", op.ID, err)
	}
	d.metrics.ObserveDispatched(string(op.Module), string(op.Kind), start)
	d.logger.DebugContext(ctx, "operation dispatched",
		"operation_id", op.ID,
		"kind", op.Kind,
		"confirmation", confirmation.ID,
		"replayed", confirmation.Replayed,
		"notary_seq", notarySeq,
	)
	return nil
}
