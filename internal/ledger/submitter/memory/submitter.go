// Package memory is the in-process ledger used in development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"crossledger/internal/ledger"
	"crossledger/pkg/domain"
	"crossledger/pkg/requestcontext"
)

// Submitter anchors operations in memory and keeps the resulting balance
// movements so tests can check what was paid out.
type Submitter struct {
	mu            sync.Mutex
	confirmations map[domain.RecordID]ledger.Confirmation
	order         []domain.RecordID
	credited      map[domain.Wallet]uint64
}

func New() *Submitter {
	return &Submitter{
		confirmations: make(map[domain.RecordID]ledger.Confirmation),
		credited:      make(map[domain.Wallet]uint64),
	}
}

// Submit is idempotent by op.ID: a replay returns the first confirmation
// with Replayed set and moves no funds.
func (s *Submitter) Submit(ctx context.Context, op ledger.Operation) (ledger.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.confirmations[op.ID]; ok {
		c.Replayed = true
		return c, nil
	}
	c := ledger.Confirmation{ID: uuid.NewString(), SubmittedAt: requestcontext.Now(ctx)}
	s.confirmations[op.ID] = c
	s.order = append(s.order, op.ID)
	if op.Transfer != nil {
		s.credited[op.Transfer.To] += op.Transfer.Amount
	}
	return c, nil
}

// Credited returns the total transferred to wallet.
func (s *Submitter) Credited(wallet domain.Wallet) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credited[wallet]
}

// Anchored returns operation ids in submission order.
func (s *Submitter) Anchored() []domain.RecordID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RecordID(nil), s.order...)
}
