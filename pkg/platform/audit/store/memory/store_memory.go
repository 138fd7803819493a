package memory

import (
	"context"
	"sync"

	audit "crossledger/pkg/platform/audit"
)

// InMemoryStore is an ordered per-topic notary log for tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	topics map[string][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{topics: make(map[string][]audit.Event)}
}

// Append stores the event and returns its 1-based position within topic.
func (s *InMemoryStore) Append(_ context.Context, topic string, event audit.Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic] = append(s.topics[topic], event)
	return uint64(len(s.topics[topic])), nil
}

// ListByTopic returns a copy of the events appended under topic, oldest first.
func (s *InMemoryStore) ListByTopic(_ context.Context, topic string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.topics[topic]...), nil
}

// Len returns the total number of events across topics.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, events := range s.topics {
		n += len(events)
	}
	return n
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = make(map[string][]audit.Event)
}
