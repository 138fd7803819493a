// Package outbox holds operations committed by the ledger components until
// the dispatcher has anchored and notarized them.
//
// Components enqueue inside their own transaction, so a committed state
// change and its pending operation become visible together. Entries are
// dispatched strictly in enqueue order.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crossledger/internal/ledger"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/sentinel"
)

// Status is the dispatch state of an entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
)

// Receipt records what the external collaborators returned for an entry.
type Receipt struct {
	Confirmation ledger.Confirmation
	NotarySeq    uint64
	TokenSerial  uint64
	DispatchedAt time.Time
}

// Entry is an operation plus its dispatch bookkeeping.
type Entry struct {
	Seq       uint64
	Operation ledger.Operation
	Status    Status
	Attempts  int
	LastError string
	Receipt   *Receipt
}

// InMemory is the process-local outbox.
type InMemory struct {
	mu      sync.RWMutex
	entries map[domain.RecordID]*Entry
	order   []domain.RecordID
	head    int
	nextSeq uint64
}

// NewInMemory constructs an empty outbox.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[domain.RecordID]*Entry)}
}

// Enqueue appends op. Enqueueing the same operation id twice fails with
// sentinel.ErrAlreadyExists.
func (o *InMemory) Enqueue(_ context.Context, op ledger.Operation) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.entries[op.ID]; ok {
		return fmt.Errorf("operation %s: %w", op.ID, sentinel.ErrAlreadyExists)
	}
	o.nextSeq++
	o.entries[op.ID] = &Entry{Seq: o.nextSeq, Operation: op, Status: StatusPending}
	o.order = append(o.order, op.ID)
	return nil
}

// Pending returns up to limit pending entries, oldest first. A limit of zero
// or less returns all of them.
func (o *InMemory) Pending(_ context.Context, limit int) ([]Entry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []Entry
	for _, id := range o.order[o.head:] {
		e := o.entries[id]
		if e.Status != StatusPending {
			continue
		}
		out = append(out, *e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkDispatched records the receipt and retires the entry.
func (o *InMemory) MarkDispatched(_ context.Context, id domain.RecordID, receipt Receipt) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, sentinel.ErrNotFound)
	}
	if e.Status == StatusDispatched {
		return fmt.Errorf("operation %s already dispatched: %w", id, sentinel.ErrInvalidState)
	}
	e.Status = StatusDispatched
	e.Attempts++
	e.LastError = ""
	e.Receipt = &receipt
	o.advanceHead()
	return nil
}

// MarkFailed records a failed attempt; the entry stays pending.
func (o *InMemory) MarkFailed(_ context.Context, id domain.RecordID, cause error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, sentinel.ErrNotFound)
	}
	e.Attempts++
	if cause != nil {
		e.LastError = cause.Error()
	}
	return nil
}

// Get returns a copy of the entry for id.
func (o *InMemory) Get(_ context.Context, id domain.RecordID) (Entry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("operation %s: %w", id, sentinel.ErrNotFound)
	}
	return *e, nil
}

// PendingCount returns the number of entries not yet dispatched.
func (o *InMemory) PendingCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := 0
	for _, id := range o.order[o.head:] {
		if o.entries[id].Status == StatusPending {
			n++
		}
	}
	return n
}

// advanceHead skips the dispatched prefix so Pending stays cheap.
func (o *InMemory) advanceHead() {
	for o.head < len(o.order) && o.entries[o.order[o.head]].Status == StatusDispatched {
		o.head++
	}
}
