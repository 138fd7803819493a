// Package redis keeps documents in Redis under their content address.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"crossledger/internal/ledger"
	"crossledger/internal/ledger/documents"
	"crossledger/internal/platform/redis"
	"crossledger/pkg/platform/sentinel"
)

// Store is a ledger.DocumentStore backed by Redis strings.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL expires documents after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		s.ttl = d
	}
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores blob once; a second Put of the same content is a no-op.
func (s *Store) Put(ctx context.Context, blob []byte) (ledger.DocumentHandle, error) {
	h := documents.HandleFor(blob)
	err := s.client.SetArgs(ctx, s.key(h), blob, goredis.SetArgs{Mode: "NX", TTL: s.ttl}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("store document: %w: %w", sentinel.ErrUnavailable, err)
	}
	return h, nil
}

func (s *Store) Get(ctx context.Context, h ledger.DocumentHandle) ([]byte, error) {
	if err := documents.Validate(h); err != nil {
		return nil, err
	}
	blob, err := s.client.Get(ctx, s.key(h)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("document %s: %w", h, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w: %w", sentinel.ErrUnavailable, err)
	}
	return blob, nil
}

func (s *Store) key(h ledger.DocumentHandle) string {
	return s.client.Key("doc", string(h))
}
