// Package tx provides the transactional boundary each ledger component runs
// its operations in, plus context plumbing for database transactions.
package tx

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dErrors "crossledger/pkg/domain-errors"
)

// Runner executes fn as one indivisible step.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// defaultTimeout bounds how long an operation may wait for the family lock.
const defaultTimeout = 5 * time.Second

// Serial is the in-memory Runner: one coarse mutex serializes every
// operation of a record family, giving each a consistent view of its stores.
type Serial struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewSerial returns a Serial runner.
func NewSerial() *Serial {
	return &Serial{timeout: defaultTimeout}
}

func (s *Serial) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// Beginner opens database transactions; *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ Beginner = (*pgxpool.Pool)(nil)

// Postgres is a Runner backed by a pgx transaction. fn sees the transaction
// through From; a transaction already on ctx is joined and left for its
// owner to commit.
type Postgres struct {
	db Beginner
}

// NewPostgres returns a Postgres runner over db.
func NewPostgres(db Beginner) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		return fn(WithTx(ctx, tx))
	})
}

type ctxKey struct{}

// WithTx stores a database transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, tx)
}

// From extracts a database transaction from context if present.
func From(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(ctxKey{}).(pgx.Tx)
	return tx, ok
}
