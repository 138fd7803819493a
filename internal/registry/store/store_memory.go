package store

import (
	"context"
	"fmt"
	"sync"

	"crossledger/internal/registry/models"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/sentinel"
)

// Error Contract:
//   - Create returns sentinel.ErrAlreadyExists for a wallet already stored
//   - Find and Update return sentinel.ErrNotFound for unknown wallets
//   - returned entities are copies; mutate them and call Update to persist

// InMemory stores entities keyed by wallet.
type InMemory struct {
	mu       sync.RWMutex
	entities map[domain.Wallet]*models.Entity
}

func NewInMemory() *InMemory {
	return &InMemory{entities: make(map[domain.Wallet]*models.Entity)}
}

func (s *InMemory) Create(_ context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entity.Wallet]; ok {
		return fmt.Errorf("entity %s: %w", entity.Wallet, sentinel.ErrAlreadyExists)
	}
	s.entities[entity.Wallet] = entity.Clone()
	return nil
}

func (s *InMemory) FindByWallet(_ context.Context, wallet domain.Wallet) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[wallet]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", wallet, sentinel.ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *InMemory) Update(_ context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entity.Wallet]; !ok {
		return fmt.Errorf("entity %s: %w", entity.Wallet, sentinel.ErrNotFound)
	}
	s.entities[entity.Wallet] = entity.Clone()
	return nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities), nil
}
