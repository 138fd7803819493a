// Package postgres keeps the notary log in Postgres, one gapless sequence
// per topic.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	audit "crossledger/pkg/platform/audit"
	txcontext "crossledger/pkg/platform/tx"
)

// Schema creates the topic heads and the event log.
const Schema = `
CREATE TABLE IF NOT EXISTS notary_topics (
	topic TEXT PRIMARY KEY,
	head  BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS notary_events (
	topic       TEXT NOT NULL,
	seq         BIGINT NOT NULL,
	event_id    TEXT NOT NULL UNIQUE,
	action      TEXT NOT NULL,
	category    TEXT NOT NULL,
	payload     JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (topic, seq)
);`

// Store implements audit.Store. Appending an event id that is already
// logged returns its original sequence.
type Store struct {
	pool *pgxpool.Pool
	tx   *txcontext.Postgres
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, tx: txcontext.NewPostgres(pool)}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate notary log: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, topic string, event audit.Event) (uint64, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal audit event: %w", err)
	}
	var seq int64
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		tx, _ := txcontext.From(txCtx)
		err := tx.QueryRow(txCtx, `SELECT seq FROM notary_events WHERE event_id = $1`, event.ID.String()).Scan(&seq)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lookup audit event: %w", err)
		}
		err = tx.QueryRow(txCtx, `
			INSERT INTO notary_topics (topic, head) VALUES ($1, 1)
			ON CONFLICT (topic) DO UPDATE SET head = notary_topics.head + 1
			RETURNING head`, topic).Scan(&seq)
		if err != nil {
			return fmt.Errorf("advance topic head: %w", err)
		}
		_, err = tx.Exec(txCtx, `
			INSERT INTO notary_events (topic, seq, event_id, action, category, payload, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			topic, seq, event.ID.String(), string(event.Action), string(event.Category), payload, event.Timestamp)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

// ListByTopic returns the events logged under topic, oldest first.
func (s *Store) ListByTopic(ctx context.Context, topic string) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM notary_events WHERE topic = $1 ORDER BY seq`, topic)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var e audit.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
