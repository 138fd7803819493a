package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"crossledger/internal/ledger"
	"crossledger/internal/ledger/outbox"
	"crossledger/internal/sustainability/models"
	"crossledger/internal/sustainability/store"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/idgen"
	"crossledger/pkg/requestcontext"
)

type SustainabilityServiceSuite struct {
	suite.Suite
	ctx      context.Context
	accounts *store.Accounts
	outbox   *outbox.InMemory
	service  *Service

	verifier authz.Capability
	holder   authz.Capability
}

func TestSustainabilityServiceSuite(t *testing.T) {
	suite.Run(t, new(SustainabilityServiceSuite))
}

func (s *SustainabilityServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	s.accounts = store.NewAccounts()
	s.outbox = outbox.NewInMemory()
	s.service = New(store.NewCredits(), s.accounts,
		ledger.NewEmitter(domain.ModuleSustainability, idgen.New("sustainability"), s.outbox))

	s.verifier = authz.For("0.0.800", authz.RoleVerifier)
	s.holder = authz.For("0.0.801")
}

func (s *SustainabilityServiceSuite) balance() uint64 {
	b, err := s.service.Balance(s.ctx, s.holder.Subject)
	s.Require().NoError(err)
	return b
}

func (s *SustainabilityServiceSuite) TestAwardRetireRoundTrip() {
	before := s.balance()

	id, err := s.service.Award(s.ctx, s.verifier, s.holder.Subject, 1000, "organic")
	s.Require().NoError(err)
	s.Equal(before+1000, s.balance())

	cr, err := s.service.GetCredit(s.ctx, id)
	s.Require().NoError(err)
	s.True(cr.Verified)
	s.Equal(uint32(2025), cr.Vintage)

	s.Require().NoError(s.service.Retire(s.ctx, s.holder, id))
	s.Equal(before, s.balance())

	err = s.service.Retire(s.ctx, s.holder, id)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRetired))
	s.Equal(before, s.balance())

	retired, err := s.service.RetiredTotal(s.ctx, s.holder.Subject)
	s.Require().NoError(err)
	s.Equal(uint64(1000), retired)
}

func (s *SustainabilityServiceSuite) TestAwardGuards() {
	s.Run("requires verifier", func() {
		_, err := s.service.Award(s.ctx, s.holder, s.holder.Subject, 10, "forestry")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero amount", func() {
		_, err := s.service.Award(s.ctx, s.verifier, s.holder.Subject, 0, "forestry")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("balance overflow leaves state unchanged", func() {
		_, err := s.service.Award(s.ctx, s.verifier, s.holder.Subject, math.MaxUint64, "forestry")
		s.Require().NoError(err)
		pending := s.outbox.PendingCount()

		_, err = s.service.Award(s.ctx, s.verifier, s.holder.Subject, 1, "forestry")
		s.True(dErrors.HasCode(err, dErrors.CodeOverflow))
		s.Equal(uint64(math.MaxUint64), s.balance())
		s.Equal(pending, s.outbox.PendingCount())

		credits, err := s.service.CreditsByEntity(s.ctx, s.holder.Subject)
		s.Require().NoError(err)
		s.Len(credits, 1)
	})
}

func (s *SustainabilityServiceSuite) TestRetireGuards() {
	id, err := s.service.Award(s.ctx, s.verifier, s.holder.Subject, 50, "wetlands")
	s.Require().NoError(err)

	s.Run("only the holder may retire", func() {
		err := s.service.Retire(s.ctx, authz.For("0.0.802"), id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
	})

	s.Run("unknown credit", func() {
		err := s.service.Retire(s.ctx, s.holder, domain.RecordID{0x42})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("retirement never wraps the balance", func() {
		s.Require().NoError(s.accounts.Put(s.ctx, models.Account{Entity: s.holder.Subject, Balance: 10}))

		err := s.service.Retire(s.ctx, s.holder, id)
		s.True(dErrors.HasCode(err, dErrors.CodeUnderflow))
		s.Equal(uint64(10), s.balance())

		cr, err := s.service.GetCredit(s.ctx, id)
		s.Require().NoError(err)
		s.False(cr.Retired)
	})
}
