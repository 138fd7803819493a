package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"crossledger/internal/agriculture/models"
	"crossledger/internal/agriculture/store"
	"crossledger/internal/ledger"
	"crossledger/internal/ledger/outbox"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/audit"
	"crossledger/pkg/platform/idgen"
	"crossledger/pkg/requestcontext"
)

type AgricultureServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	outbox  *outbox.InMemory
	service *Service

	farmer   authz.Capability
	buyer    authz.Capability
	verifier authz.Capability
	admin    authz.Capability
}

func TestAgricultureServiceSuite(t *testing.T) {
	suite.Run(t, new(AgricultureServiceSuite))
}

func (s *AgricultureServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.outbox = outbox.NewInMemory()
	s.service = New(store.NewHarvests(), store.NewContracts(), store.NewPolicies(),
		ledger.NewEmitter(domain.ModuleAgriculture, idgen.New("agriculture"), s.outbox))

	s.farmer = authz.For("0.0.11")
	s.buyer = authz.For("0.0.22")
	s.verifier = authz.For("0.0.33", authz.RoleVerifier)
	s.admin = authz.For("0.0.44", authz.RoleAdmin)
}

func (s *AgricultureServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

func (s *AgricultureServiceSuite) harvest(quantity uint64) domain.RecordID {
	id, err := s.service.RecordHarvest(s.ctx, s.farmer, "coffee", quantity, 4)
	s.Require().NoError(err)
	return id
}

func (s *AgricultureServiceSuite) contract(quantity, price uint64) domain.RecordID {
	id, err := s.service.CreateSalesContract(s.ctx, s.farmer, s.buyer.Subject, s.harvest(100), quantity, price)
	s.Require().NoError(err)
	return id
}

func (s *AgricultureServiceSuite) TestHarvests() {
	s.Run("records and indexes per farmer in order", func() {
		first := s.harvest(10)
		second := s.harvest(20)

		list, err := s.service.HarvestsByFarmer(s.ctx, s.farmer.Subject)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal(first, list[0].ID)
		s.Equal(second, list[1].ID)
	})

	s.Run("rejects invalid grade", func() {
		_, err := s.service.RecordHarvest(s.ctx, s.farmer, "coffee", 10, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("verification requires verifier and happens once", func() {
		id := s.harvest(5)
		s.True(dErrors.HasCode(s.service.VerifyHarvest(s.ctx, s.farmer, id), dErrors.CodeUnauthorized))
		s.Require().NoError(s.service.VerifyHarvest(s.ctx, s.verifier, id))
		s.True(dErrors.HasCode(s.service.VerifyHarvest(s.ctx, s.verifier, id), dErrors.CodeAlreadyVerified))

		h, err := s.service.GetHarvest(s.ctx, id)
		s.Require().NoError(err)
		s.True(h.Verified)
	})
}

func (s *AgricultureServiceSuite) TestCreateSalesContract() {
	harvestID := s.harvest(100)

	s.Run("unknown harvest", func() {
		_, err := s.service.CreateSalesContract(s.ctx, s.farmer, s.buyer.Subject, domain.RecordID{0xee}, 1, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("caller must own the harvest", func() {
		_, err := s.service.CreateSalesContract(s.ctx, s.buyer, s.buyer.Subject, harvestID, 1, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
	})

	s.Run("cannot sell more than harvested", func() {
		_, err := s.service.CreateSalesContract(s.ctx, s.farmer, s.buyer.Subject, harvestID, 101, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientQuantity))
	})

	s.Run("zero buyer identity", func() {
		_, err := s.service.CreateSalesContract(s.ctx, s.farmer, "0x0000000000000000000000000000000000000000", harvestID, 1, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidBuyer))
	})

	s.Run("computes total", func() {
		id, err := s.service.CreateSalesContract(s.ctx, s.farmer, s.buyer.Subject, harvestID, 40, 25)
		s.Require().NoError(err)
		sc, err := s.service.GetContract(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(uint64(1000), sc.Total)
		s.Zero(sc.EscrowAmount)

		byBuyer, err := s.service.ContractsByBuyer(s.ctx, s.buyer.Subject)
		s.Require().NoError(err)
		s.Len(byBuyer, 1)
	})
}

func (s *AgricultureServiceSuite) TestProcessPaymentExactlyOnce() {
	id := s.contract(50, 200) // total 10_000

	s.True(dErrors.HasCode(s.service.DepositEscrow(s.ctx, s.farmer, id, 10_000), dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(s.service.DepositEscrow(s.ctx, s.buyer, id, 9_999), dErrors.CodeInsufficientPayment))
	s.Require().NoError(s.service.DepositEscrow(s.ctx, s.buyer, id, 12_345))

	_, err := s.service.ProcessPayment(s.ctx, s.buyer, id)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed), "delivery not yet confirmed")

	s.True(dErrors.HasCode(s.service.ConfirmDeliveryAndQuality(s.ctx, s.buyer, id), dErrors.CodeUnauthorized))
	s.Require().NoError(s.service.ConfirmDeliveryAndQuality(s.ctx, s.verifier, id))

	_, err = s.service.ProcessPayment(s.ctx, authz.For("0.0.99"), id)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	receipt, err := s.service.ProcessPayment(s.ctx, s.buyer, id)
	s.Require().NoError(err)
	s.Equal(uint64(12_345), receipt.EscrowAmount)
	s.Equal(uint64(18), receipt.PlatformFee) // floor(12345*15/10000)
	s.Equal(uint64(12_345-18), receipt.FarmerPayment)
	s.Equal(s.farmer.Subject, receipt.Farmer)

	_, err = s.service.ProcessPayment(s.ctx, s.buyer, id)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyCompleted))
	_, err = s.service.ProcessPayment(s.ctx, s.admin, id)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyCompleted))

	transfers := s.transfers(audit.EventPaymentReleased)
	s.Require().Len(transfers, 1, "exactly one release is ever enqueued")
	s.Equal(ledger.Transfer{To: s.farmer.Subject, Amount: receipt.FarmerPayment}, transfers[0])

	entry, err := s.outbox.Get(s.ctx, receipt.OperationID)
	s.Require().NoError(err)
	s.Equal(id, entry.Operation.RecordID)

	sc, err := s.service.GetContract(s.ctx, id)
	s.Require().NoError(err)
	s.True(sc.Completed)
	s.Equal(s.now, sc.CompletedAt)
}

func (s *AgricultureServiceSuite) TestAdminMayReleasePayment() {
	id := s.contract(1, 1000)
	s.Require().NoError(s.service.ConfirmDeliveryAndQuality(s.ctx, s.verifier, id))
	s.Require().NoError(s.service.DepositEscrow(s.ctx, s.buyer, id, 1000))

	receipt, err := s.service.ProcessPayment(s.ctx, s.admin, id)
	s.Require().NoError(err)
	s.Equal(uint64(1), receipt.PlatformFee)
	s.Equal(uint64(999), receipt.FarmerPayment)
}

func (s *AgricultureServiceSuite) TestCropInsurance() {
	s.Run("premium threshold", func() {
		_, err := s.service.CreateInsurancePolicy(s.ctx, s.farmer, "coffee", 10_000, 80, 90, 400)
		s.Require().NoError(err)

		_, err = s.service.CreateInsurancePolicy(s.ctx, s.farmer, "coffee", 10_000, 80, 90, 399)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPremium))
	})

	s.Run("payout once", func() {
		id, err := s.service.CreateInsurancePolicy(s.ctx, s.farmer, "coffee", 10_000, 80, 90, 400)
		s.Require().NoError(err)

		_, err = s.service.ProcessInsurancePayout(s.ctx, s.farmer, id, 50)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		payout, err := s.service.ProcessInsurancePayout(s.at(24*time.Hour), s.verifier, id, 50)
		s.Require().NoError(err)
		s.Equal(uint64(4000), payout)

		_, err = s.service.ProcessInsurancePayout(s.at(48*time.Hour), s.verifier, id, 50)
		s.True(dErrors.HasCode(err, dErrors.CodeNotActive))

		p, err := s.service.GetPolicy(s.ctx, id)
		s.Require().NoError(err)
		s.False(p.Active)
		s.Equal(uint64(4000), p.Payout)

		transfers := s.transfers(audit.EventCropPayoutProcessed)
		s.Require().Len(transfers, 1)
		s.Equal(uint64(4000), transfers[0].Amount)
	})

	s.Run("expired policy", func() {
		id, err := s.service.CreateInsurancePolicy(s.ctx, s.farmer, "maize", 1_000, 50, 30, 40)
		s.Require().NoError(err)
		_, err = s.service.ProcessInsurancePayout(s.at(31*24*time.Hour), s.verifier, id, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})

	s.Run("unknown policy", func() {
		_, err := s.service.ProcessInsurancePayout(s.ctx, s.verifier, domain.RecordID{0xaa}, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.service.GetPolicy(s.ctx, domain.RecordID{0xaa})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *AgricultureServiceSuite) transfers(kind audit.Action) []ledger.Transfer {
	entries, err := s.outbox.Pending(s.ctx, 0)
	s.Require().NoError(err)
	var out []ledger.Transfer
	for _, e := range entries {
		if e.Operation.Kind == kind && e.Operation.Transfer != nil {
			out = append(out, *e.Operation.Transfer)
		}
	}
	return out
}

var _ Table[*models.Harvest] = store.NewHarvests()
