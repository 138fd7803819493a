// Package memstore provides the record table backing the in-memory engine
// stores. Rows are keyed by record id and indexed by owner wallet in
// insertion order. Reads and writes copy rows so callers never share state
// with the table.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"crossledger/pkg/domain"
	"crossledger/pkg/platform/sentinel"
)

// Table is a concurrency-safe map of records of one kind.
type Table[V any] struct {
	mu     sync.RWMutex
	name   string
	rows   map[domain.RecordID]V
	owners map[domain.Wallet][]domain.RecordID
	clone  func(V) V
	owner  func(V) domain.Wallet
}

// NewTable builds a table. clone deep-copies a row; owner returns the wallet
// a row is indexed under.
func NewTable[V any](name string, clone func(V) V, owner func(V) domain.Wallet) *Table[V] {
	return &Table[V]{
		name:   name,
		rows:   make(map[domain.RecordID]V),
		owners: make(map[domain.Wallet][]domain.RecordID),
		clone:  clone,
		owner:  owner,
	}
}

// Create inserts v under id, failing with sentinel.ErrAlreadyExists.
func (t *Table[V]) Create(_ context.Context, id domain.RecordID, v V) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; ok {
		return fmt.Errorf("%s %s: %w", t.name, id, sentinel.ErrAlreadyExists)
	}
	t.rows[id] = t.clone(v)
	o := t.owner(v)
	t.owners[o] = append(t.owners[o], id)
	return nil
}

// Find returns a copy of the row, or sentinel.ErrNotFound.
func (t *Table[V]) Find(_ context.Context, id domain.RecordID) (V, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%s %s: %w", t.name, id, sentinel.ErrNotFound)
	}
	return t.clone(v), nil
}

// Update replaces an existing row. The owner index is not touched; owners
// never change after creation.
func (t *Table[V]) Update(_ context.Context, id domain.RecordID, v V) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return fmt.Errorf("%s %s: %w", t.name, id, sentinel.ErrNotFound)
	}
	t.rows[id] = t.clone(v)
	return nil
}

// ListByOwner returns copies of owner's rows in creation order.
func (t *Table[V]) ListByOwner(_ context.Context, owner domain.Wallet) ([]V, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.owners[owner]
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.clone(t.rows[id]))
	}
	return out, nil
}

func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
