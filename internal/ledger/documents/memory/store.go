package memory

import (
	"context"
	"fmt"
	"sync"

	"crossledger/internal/ledger"
	"crossledger/internal/ledger/documents"
	"crossledger/pkg/platform/sentinel"
)

// Store keeps documents in process memory.
type Store struct {
	mu   sync.RWMutex
	docs map[ledger.DocumentHandle][]byte
}

func New() *Store {
	return &Store{docs: make(map[ledger.DocumentHandle][]byte)}
}

func (s *Store) Put(_ context.Context, blob []byte) (ledger.DocumentHandle, error) {
	h := documents.HandleFor(blob)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[h]; !ok {
		s.docs[h] = append([]byte(nil), blob...)
	}
	return h, nil
}

func (s *Store) Get(_ context.Context, h ledger.DocumentHandle) ([]byte, error) {
	if err := documents.Validate(h); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.docs[h]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", h, sentinel.ErrNotFound)
	}
	return append([]byte(nil), blob...), nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
