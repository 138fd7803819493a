package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"crossledger/internal/ledger"
	"crossledger/internal/ledger/outbox"
	"crossledger/internal/platform/metrics"
	"crossledger/internal/registry/models"
	"crossledger/internal/registry/store"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/idgen"
)

type RegistryServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	outbox  *outbox.InMemory
	metrics *metrics.Metrics
	service *Service

	verifier authz.Capability
	module   authz.Capability
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.outbox = outbox.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	emitter := ledger.NewEmitter(domain.ModuleRegistry, idgen.New("registry"), s.outbox)
	s.service = New(s.store, emitter, WithMetrics(s.metrics))
	s.verifier = authz.For("0.0.900", authz.RoleVerifier)
	s.module = authz.For("0.0.901", authz.RoleModule)
}

func (s *RegistryServiceSuite) register(wallet domain.Wallet) *models.Entity {
	e, err := s.service.Register(s.ctx, authz.For(wallet), domain.EntityFarmer, domain.NewModuleSet("agriculture"))
	s.Require().NoError(err)
	return e
}

func (s *RegistryServiceSuite) TestRegister() {
	s.Run("new wallet starts unverified at initial reputation", func() {
		e := s.register("0.0.1")
		s.Equal(domain.Wallet("0.0.1"), e.Wallet)
		s.Equal(models.InitialReputation, e.Reputation)
		s.False(e.Verified)
		s.Equal(1, s.outbox.PendingCount())
	})

	s.Run("same wallet twice fails AlreadyExists", func() {
		_, err := s.service.Register(s.ctx, authz.For("0.0.1"), domain.EntityBuyer, domain.NewModuleSet("healthcare"))
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyExists))

		e, err := s.service.GetEntity(s.ctx, "0.0.1")
		s.Require().NoError(err)
		s.Equal(domain.EntityFarmer, e.Type, "original registration is untouched")
	})

	s.Run("empty module set fails InvalidInput", func() {
		_, err := s.service.Register(s.ctx, authz.For("0.0.2"), domain.EntityFarmer, domain.NewModuleSet())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.service.GetEntity(s.ctx, "0.0.2")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown entity type fails InvalidInput", func() {
		_, err := s.service.Register(s.ctx, authz.For("0.0.3"), domain.EntityType("alien"), domain.NewModuleSet("agriculture"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("capability without subject is unauthorized", func() {
		_, err := s.service.Register(s.ctx, authz.Capability{}, domain.EntityFarmer, domain.NewModuleSet("agriculture"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Operations.WithLabelValues(component, "register", "ok")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Operations.WithLabelValues(component, "register", string(dErrors.CodeAlreadyExists))))
}

func (s *RegistryServiceSuite) TestVerify() {
	s.register("0.0.10")

	s.Run("requires verifier authority", func() {
		_, err := s.service.Verify(s.ctx, s.module, "0.0.10")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown wallet fails NotFound", func() {
		_, err := s.service.Verify(s.ctx, s.verifier, "0.0.404")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("verifies once", func() {
		e, err := s.service.Verify(s.ctx, s.verifier, "0.0.10")
		s.Require().NoError(err)
		s.True(e.Verified)

		ok, err := s.service.IsVerified(s.ctx, "0.0.10")
		s.Require().NoError(err)
		s.True(ok)

		_, err = s.service.Verify(s.ctx, s.verifier, "0.0.10")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVerified))
	})

	s.Run("unknown wallet is not verified", func() {
		ok, err := s.service.IsVerified(s.ctx, "0.0.404")
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *RegistryServiceSuite) TestUpdateReputation() {
	s.register("0.0.20")

	s.Run("requires module authority", func() {
		_, err := s.service.UpdateReputation(s.ctx, s.verifier, "0.0.20", 10)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown wallet fails NotFound", func() {
		_, err := s.service.UpdateReputation(s.ctx, s.module, "0.0.404", 10)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("stays within bounds for any delta sequence", func() {
		deltas := []int64{100, -50, 600, math.MaxInt64, -1200, math.MinInt64, 250, 0, -1}
		want := []int{600, 550, 1000, 1000, 0, 0, 250, 250, 249}
		for i, d := range deltas {
			e, err := s.service.UpdateReputation(s.ctx, s.module, "0.0.20", d)
			s.Require().NoError(err)
			s.Equal(want[i], e.Reputation, "after delta %d", d)
			s.GreaterOrEqual(e.Reputation, models.MinReputation)
			s.LessOrEqual(e.Reputation, models.MaxReputation)
		}
	})
}

func (s *RegistryServiceSuite) TestRecordCompletedTransaction() {
	s.register("0.0.30")

	_, err := s.service.RecordCompletedTransaction(s.ctx, authz.For("0.0.30"), "0.0.30")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	for range 3 {
		_, err := s.service.RecordCompletedTransaction(s.ctx, s.module, "0.0.30")
		s.Require().NoError(err)
	}
	e, err := s.service.GetEntity(s.ctx, "0.0.30")
	s.Require().NoError(err)
	s.Equal(uint64(3), e.TotalTransactions)
}

func (s *RegistryServiceSuite) TestActivateModules() {
	s.register("0.0.40")

	e, err := s.service.ActivateModules(s.ctx, authz.For("0.0.40"), domain.NewModuleSet("sustainability", "agriculture"))
	s.Require().NoError(err)
	s.Equal(domain.NewModuleSet("agriculture", "sustainability"), e.Modules)

	_, err = s.service.ActivateModules(s.ctx, authz.For("0.0.40"), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.ActivateModules(s.ctx, authz.For("0.0.41"), domain.NewModuleSet("healthcare"))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistryServiceSuite) TestFailedEnqueueLeavesStateUnchanged() {
	svc := New(s.store, ledger.NewEmitter(domain.ModuleRegistry, idgen.New("registry"), failingRecorder{}))

	_, err := svc.Register(s.ctx, authz.For("0.0.50"), domain.EntityPatient, domain.NewModuleSet("healthcare"))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = s.service.GetEntity(s.ctx, "0.0.50")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

type failingRecorder struct{}

func (failingRecorder) Enqueue(context.Context, ledger.Operation) error {
	return errors.New("outbox unavailable")
}
