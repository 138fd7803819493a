package store

import (
	"context"
	"fmt"
	"sync"

	"crossledger/internal/coordinator/models"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/sentinel"
)

// InMemory stores cross-module transactions by id and keeps a per-initiator
// index in creation order.
type InMemory struct {
	mu          sync.RWMutex
	txs         map[domain.RecordID]*models.Transaction
	byInitiator map[domain.Wallet][]domain.RecordID
}

func NewInMemory() *InMemory {
	return &InMemory{
		txs:         make(map[domain.RecordID]*models.Transaction),
		byInitiator: make(map[domain.Wallet][]domain.RecordID),
	}
}

func (s *InMemory) Create(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[t.ID]; ok {
		return fmt.Errorf("transaction %s: %w", t.ID, sentinel.ErrAlreadyExists)
	}
	s.txs[t.ID] = t.Clone()
	s.byInitiator[t.Initiator] = append(s.byInitiator[t.Initiator], t.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RecordID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, sentinel.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *InMemory) Update(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[t.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", t.ID, sentinel.ErrNotFound)
	}
	s.txs[t.ID] = t.Clone()
	return nil
}

func (s *InMemory) ListByInitiator(_ context.Context, initiator domain.Wallet) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byInitiator[initiator]
	out := make([]*models.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.txs[id].Clone())
	}
	return out, nil
}
