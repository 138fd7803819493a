// Package postgres anchors operations in a Postgres journal table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"crossledger/internal/ledger"
	"crossledger/pkg/domain"
	txcontext "crossledger/pkg/platform/tx"
	"crossledger/pkg/requestcontext"
)

// Schema creates the journal and credit tables.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_journal (
	height          BIGSERIAL PRIMARY KEY,
	operation_id    TEXT NOT NULL UNIQUE,
	module          TEXT NOT NULL,
	kind            TEXT NOT NULL,
	record_id       TEXT NOT NULL,
	actor           TEXT NOT NULL,
	payload         JSONB NOT NULL,
	beneficiary     TEXT,
	amount          NUMERIC(20,0),
	confirmation_id TEXT NOT NULL,
	submitted_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_credits (
	wallet TEXT PRIMARY KEY,
	total  NUMERIC(20,0) NOT NULL
);`

// Journal implements ledger.Submitter on a pgx pool.
type Journal struct {
	pool *pgxpool.Pool
	tx   *txcontext.Postgres
}

func New(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool, tx: txcontext.NewPostgres(pool)}
}

// Connect opens a pool for dsn capped at maxConns.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate applies Schema.
func (j *Journal) Migrate(ctx context.Context) error {
	if _, err := j.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate ledger journal: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Submit inserts the operation and its credit in one transaction. A
// transaction already on ctx is joined instead.
func (j *Journal) Submit(ctx context.Context, op ledger.Operation) (ledger.Confirmation, error) {
	var c ledger.Confirmation
	err := j.tx.RunInTx(ctx, func(txCtx context.Context) error {
		tx, _ := txcontext.From(txCtx)
		var err error
		c, err = j.submit(txCtx, tx, op)
		return err
	})
	if err != nil {
		return ledger.Confirmation{}, err
	}
	return c, nil
}

func (j *Journal) submit(ctx context.Context, db execer, op ledger.Operation) (ledger.Confirmation, error) {
	payload := op.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	var beneficiary, amount *string
	if op.Transfer != nil {
		to, amt := op.Transfer.To.String(), strconv.FormatUint(op.Transfer.Amount, 10)
		beneficiary, amount = &to, &amt
	}

	c := ledger.Confirmation{ID: uuid.NewString(), SubmittedAt: requestcontext.Now(ctx)}
	tag, err := db.Exec(ctx, `
		INSERT INTO ledger_journal (operation_id, module, kind, record_id, actor, payload,
			beneficiary, amount, confirmation_id, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10)
		ON CONFLICT (operation_id) DO NOTHING`,
		op.ID.String(), string(op.Module), string(op.Kind), op.RecordID.String(), op.Actor.String(),
		[]byte(payload), beneficiary, amount, c.ID, c.SubmittedAt,
	)
	if err != nil {
		return ledger.Confirmation{}, fmt.Errorf("insert journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return j.replayed(ctx, db, op.ID)
	}
	if op.Transfer != nil {
		_, err := db.Exec(ctx, `
			INSERT INTO ledger_credits (wallet, total) VALUES ($1, $2::numeric)
			ON CONFLICT (wallet) DO UPDATE SET total = ledger_credits.total + EXCLUDED.total`,
			op.Transfer.To.String(), *amount,
		)
		if err != nil {
			return ledger.Confirmation{}, fmt.Errorf("credit beneficiary: %w", err)
		}
	}
	return c, nil
}

func (j *Journal) replayed(ctx context.Context, db execer, id domain.RecordID) (ledger.Confirmation, error) {
	c := ledger.Confirmation{Replayed: true}
	err := db.QueryRow(ctx,
		`SELECT confirmation_id, submitted_at FROM ledger_journal WHERE operation_id = $1`,
		id.String(),
	).Scan(&c.ID, &c.SubmittedAt)
	if err != nil {
		return ledger.Confirmation{}, fmt.Errorf("load confirmation: %w", err)
	}
	return c, nil
}

// Credited returns the total transferred to wallet.
func (j *Journal) Credited(ctx context.Context, wallet domain.Wallet) (uint64, error) {
	var total string
	err := j.pool.QueryRow(ctx,
		`SELECT total::text FROM ledger_credits WHERE wallet = $1`, wallet.String(),
	).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load credit: %w", err)
	}
	return strconv.ParseUint(total, 10, 64)
}

// Height returns the number of anchored operations.
func (j *Journal) Height(ctx context.Context) (uint64, error) {
	var n int64
	if err := j.pool.QueryRow(ctx, `SELECT count(*) FROM ledger_journal`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return uint64(n), nil
}
