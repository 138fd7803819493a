// Package kafka publishes audit events to Kafka-compatible brokers (Kafka,
// Redpanda). Each notary topic maps to one broker topic; records are keyed by
// event id so replays of the same operation land on the same partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "crossledger/pkg/platform/audit"
)

// Store implements audit.Store on a franz-go client.
type Store struct {
	client      *kgo.Client
	topicPrefix string
}

// Option configures the Store.
type Option func(*Store)

// WithTopicPrefix namespaces broker topics, e.g. "crossledger.audit.".
func WithTopicPrefix(prefix string) Option {
	return func(s *Store) {
		s.topicPrefix = prefix
	}
}

// New wraps an existing client. The caller owns the client lifecycle.
func New(client *kgo.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial creates a client for brokers with idempotent, ordered production.
func Dial(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.MaxBufferedRecords(1024),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// Topic returns the broker topic used for a notary topic.
func (s *Store) Topic(topic string) string {
	return s.topicPrefix + topic
}

// Append produces the event synchronously and returns its 1-based position,
// the broker offset plus one within the topic's single partition.
func (s *Store) Append(ctx context.Context, topic string, event audit.Event) (uint64, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.Topic(topic),
		Key:   []byte(event.ID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	produced, err := s.client.ProduceSync(ctx, record).First()
	if err != nil {
		return 0, fmt.Errorf("produce audit event: %w", err)
	}
	return uint64(produced.Offset) + 1, nil
}

// EnsureTopics creates single-partition topics for the given notary topics.
// A single partition keeps per-topic ordering; existing topics are left alone.
func (s *Store) EnsureTopics(ctx context.Context, replicationFactor int16, topics ...string) error {
	admin := kadm.NewClient(s.client)
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, s.Topic(t))
	}
	resp, err := admin.CreateTopics(ctx, 1, replicationFactor, nil, names...)
	if err != nil {
		return fmt.Errorf("create audit topics: %w", err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !isTopicExists(r.Err) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
