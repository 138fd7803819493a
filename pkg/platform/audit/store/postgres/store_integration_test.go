//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"crossledger/pkg/domain"
	audit "crossledger/pkg/platform/audit"
	"crossledger/pkg/testutil/containers"
)

type StoreIntegrationSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
	ctx   context.Context
}

func TestStoreIntegrationSuite(t *testing.T) {
	suite.Run(t, new(StoreIntegrationSuite))
}

func (s *StoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.Pool)
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *StoreIntegrationSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "notary_topics", "notary_events"))
}

func event(id byte, action audit.Action) audit.Event {
	return audit.Event{
		ID:        domain.RecordID{id},
		Module:    domain.ModuleSustainability,
		Action:    action,
		Category:  action.Category(),
		Actor:     "0.0.300",
		Timestamp: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *StoreIntegrationSuite) TestSequencesArePerTopic() {
	a, err := s.store.Append(s.ctx, "sustainability", event(1, audit.EventCreditsAwarded))
	s.Require().NoError(err)
	b, err := s.store.Append(s.ctx, "sustainability", event(2, audit.EventCreditsRetired))
	s.Require().NoError(err)
	c, err := s.store.Append(s.ctx, "registry", event(3, audit.EventEntityRegistered))
	s.Require().NoError(err)

	s.Equal([]uint64{1, 2, 1}, []uint64{a, b, c})

	events, err := s.store.ListByTopic(s.ctx, "sustainability")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.EventCreditsRetired, events[1].Action)
}

func (s *StoreIntegrationSuite) TestReappendReturnsOriginalSequence() {
	first, err := s.store.Append(s.ctx, "sustainability", event(9, audit.EventCreditsAwarded))
	s.Require().NoError(err)
	again, err := s.store.Append(s.ctx, "sustainability", event(9, audit.EventCreditsAwarded))
	s.Require().NoError(err)
	s.Equal(first, again)

	events, err := s.store.ListByTopic(s.ctx, "sustainability")
	s.Require().NoError(err)
	s.Len(events, 1)
}
