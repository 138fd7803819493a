package service

import (
	"context"
	"errors"
	"log/slog"

	"crossledger/internal/agriculture/models"
	"crossledger/internal/ledger"
	"crossledger/internal/platform/metrics"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/audit"
	"crossledger/pkg/platform/sentinel"
	"crossledger/pkg/platform/tx"
	"crossledger/pkg/requestcontext"
)

const component = "agriculture"

// Table is a record store keyed by record id and indexed by owner.
type Table[V any] interface {
	Create(ctx context.Context, id domain.RecordID, v V) error
	Find(ctx context.Context, id domain.RecordID) (V, error)
	Update(ctx context.Context, id domain.RecordID, v V) error
	ListByOwner(ctx context.Context, owner domain.Wallet) ([]V, error)
}

// Service owns harvests, escrow-backed sales contracts and crop insurance.
// All three record kinds share one transaction runner.
type Service struct {
	harvests  Table[*models.Harvest]
	contracts Table[*models.SalesContract]
	policies  Table[*models.CropPolicy]
	emitter   *ledger.Emitter
	tx        tx.Runner
	authz     *authz.Authorizer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithAuthorizer(a *authz.Authorizer) Option {
	return func(s *Service) {
		s.authz = a
	}
}

func New(harvests Table[*models.Harvest], contracts Table[*models.SalesContract], policies Table[*models.CropPolicy], emitter *ledger.Emitter, opts ...Option) *Service {
	s := &Service{
		harvests:  harvests,
		contracts: contracts,
		policies:  policies,
		emitter:   emitter,
		tx:        tx.NewSerial(),
		authz:     authz.NewAuthorizer(nil),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordHarvest records a harvest owned by the caller.
func (s *Service) RecordHarvest(ctx context.Context, c authz.Capability, cropType string, quantity uint64, grade uint8) (domain.RecordID, error) {
	var id domain.RecordID
	err := s.run(ctx, "record_harvest", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		h, err := models.NewHarvest(s.emitter.NewRecordID(txCtx, c.Subject, "harvest", cropType, quantity, grade),
			c.Subject, cropType, quantity, grade, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventHarvestRecorded, h.ID, c.Subject, h, nil); err != nil {
			return err
		}
		if err := s.harvests.Create(txCtx, h.ID, h); err != nil {
			return translate(err, "harvest")
		}
		id = h.ID
		return nil
	})
	return id, err
}

// VerifyHarvest marks a harvest verified. Requires verifier authority.
func (s *Service) VerifyHarvest(ctx context.Context, c authz.Capability, harvestID domain.RecordID) error {
	return s.run(ctx, "verify_harvest", func(txCtx context.Context) error {
		if err := s.authz.Require(c, authz.RoleVerifier); err != nil {
			return err
		}
		h, err := s.harvests.Find(txCtx, harvestID)
		if err != nil {
			return translate(err, "harvest")
		}
		if err := h.Verify(); err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventHarvestVerified, h.ID, c.Subject, h, nil); err != nil {
			return err
		}
		return translate(s.harvests.Update(txCtx, h.ID, h), "harvest")
	})
}

// CreateSalesContract sells quantity units of the caller's harvest to buyer.
func (s *Service) CreateSalesContract(ctx context.Context, c authz.Capability, buyer domain.Wallet, harvestID domain.RecordID, quantity, pricePerUnit uint64) (domain.RecordID, error) {
	var id domain.RecordID
	err := s.run(ctx, "create_contract", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		h, err := s.harvests.Find(txCtx, harvestID)
		if err != nil {
			return translate(err, "harvest")
		}
		contractID := s.emitter.NewRecordID(txCtx, c.Subject, "contract", buyer, harvestID, quantity, pricePerUnit)
		contract, err := models.NewSalesContract(contractID, h, c.Subject, buyer, quantity, pricePerUnit, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventContractCreated, contract.ID, c.Subject, contract, nil); err != nil {
			return err
		}
		if err := s.contracts.Create(txCtx, contract.ID, contract); err != nil {
			return translate(err, "sales contract")
		}
		id = contract.ID
		return nil
	})
	return id, err
}

// DepositEscrow records the buyer's escrow for a contract. A second deposit
// overwrites the first.
func (s *Service) DepositEscrow(ctx context.Context, c authz.Capability, contractID domain.RecordID, amount uint64) error {
	return s.updateContract(ctx, "deposit_escrow", contractID, c.Subject, audit.EventEscrowDeposited, func(sc *models.SalesContract) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		return sc.DepositEscrow(c.Subject, amount)
	})
}

// ConfirmDeliveryAndQuality sets both confirmation flags. Requires verifier
// authority; escrow need not be deposited yet.
func (s *Service) ConfirmDeliveryAndQuality(ctx context.Context, c authz.Capability, contractID domain.RecordID) error {
	if err := s.authz.Require(c, authz.RoleVerifier); err != nil {
		s.metrics.ObserveOperation(component, "confirm_delivery", err)
		return err
	}
	return s.updateContract(ctx, "confirm_delivery", contractID, c.Subject, audit.EventDeliveryConfirmed, func(sc *models.SalesContract) error {
		return sc.ConfirmDeliveryAndQuality()
	})
}

// ProcessPayment releases escrow to the farmer, less the platform fee. The
// caller must be the buyer or an admin.
//
// The contract is completed and the transfer is enqueued in the same
// transaction; funds only move once the dispatcher anchors the operation, so
// a retried call can never pay twice.
func (s *Service) ProcessPayment(ctx context.Context, c authz.Capability, contractID domain.RecordID) (models.PaymentReceipt, error) {
	var receipt models.PaymentReceipt
	err := s.run(ctx, "process_payment", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		sc, err := s.contracts.Find(txCtx, contractID)
		if err != nil {
			return translate(err, "sales contract")
		}
		if c.Subject != sc.Buyer && !s.authz.Allows(c, authz.RoleAdmin) {
			return dErrors.New(dErrors.CodeUnauthorized, "only the buyer or an admin may release payment")
		}
		r, err := sc.ReleasePayment(requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		op, err := s.emitter.Emit(txCtx, audit.EventPaymentReleased, sc.ID, c.Subject, r,
			&ledger.Transfer{To: sc.Farmer, Amount: r.FarmerPayment})
		if err != nil {
			return err
		}
		if err := s.contracts.Update(txCtx, sc.ID, sc); err != nil {
			return translate(err, "sales contract")
		}
		r.OperationID = op.ID
		receipt = r
		return nil
	})
	if err != nil {
		return models.PaymentReceipt{}, err
	}
	s.logger.InfoContext(ctx, "escrow released",
		"contract_id", receipt.ContractID,
		"farmer", receipt.Farmer,
		"farmer_payment", receipt.FarmerPayment,
		"platform_fee", receipt.PlatformFee,
	)
	return receipt, nil
}

// CreateInsurancePolicy insures the caller's crop. paidPremium must cover
// PremiumPercent of insuredValue.
func (s *Service) CreateInsurancePolicy(ctx context.Context, c authz.Capability, cropType string, insuredValue, coveragePct, durationDays, paidPremium uint64) (domain.RecordID, error) {
	var id domain.RecordID
	err := s.run(ctx, "create_policy", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		policyID := s.emitter.NewRecordID(txCtx, c.Subject, "crop_policy", cropType, insuredValue, coveragePct, durationDays)
		p, err := models.NewCropPolicy(policyID, c.Subject, cropType, insuredValue, coveragePct, durationDays, paidPremium, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventCropPolicyCreated, p.ID, c.Subject, p, nil); err != nil {
			return err
		}
		if err := s.policies.Create(txCtx, p.ID, p); err != nil {
			return translate(err, "crop policy")
		}
		id = p.ID
		return nil
	})
	return id, err
}

// ProcessInsurancePayout pays out a policy once. Requires verifier authority.
func (s *Service) ProcessInsurancePayout(ctx context.Context, c authz.Capability, policyID domain.RecordID, payoutPct uint64) (uint64, error) {
	var payout uint64
	err := s.run(ctx, "process_payout", func(txCtx context.Context) error {
		if err := s.authz.Require(c, authz.RoleVerifier); err != nil {
			return err
		}
		p, err := s.policies.Find(txCtx, policyID)
		if err != nil {
			return translate(err, "crop policy")
		}
		amount, err := p.ProcessPayout(payoutPct, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		var transfer *ledger.Transfer
		if amount > 0 {
			transfer = &ledger.Transfer{To: p.Farmer, Amount: amount}
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventCropPayoutProcessed, p.ID, c.Subject, p, transfer); err != nil {
			return err
		}
		if err := s.policies.Update(txCtx, p.ID, p); err != nil {
			return translate(err, "crop policy")
		}
		payout = amount
		return nil
	})
	return payout, err
}

func (s *Service) GetHarvest(ctx context.Context, id domain.RecordID) (*models.Harvest, error) {
	h, err := s.harvests.Find(ctx, id)
	if err != nil {
		return nil, translate(err, "harvest")
	}
	return h, nil
}

// HarvestsByFarmer returns the farmer's harvests in recording order.
func (s *Service) HarvestsByFarmer(ctx context.Context, farmer domain.Wallet) ([]*models.Harvest, error) {
	list, err := s.harvests.ListByOwner(ctx, farmer)
	if err != nil {
		return nil, translate(err, "harvest")
	}
	return list, nil
}

func (s *Service) GetContract(ctx context.Context, id domain.RecordID) (*models.SalesContract, error) {
	sc, err := s.contracts.Find(ctx, id)
	if err != nil {
		return nil, translate(err, "sales contract")
	}
	return sc, nil
}

func (s *Service) ContractsByBuyer(ctx context.Context, buyer domain.Wallet) ([]*models.SalesContract, error) {
	list, err := s.contracts.ListByOwner(ctx, buyer)
	if err != nil {
		return nil, translate(err, "sales contract")
	}
	return list, nil
}

func (s *Service) GetPolicy(ctx context.Context, id domain.RecordID) (*models.CropPolicy, error) {
	p, err := s.policies.Find(ctx, id)
	if err != nil {
		return nil, translate(err, "crop policy")
	}
	return p, nil
}

func (s *Service) updateContract(ctx context.Context, op string, id domain.RecordID, actor domain.Wallet, kind audit.Action, fn func(*models.SalesContract) error) error {
	return s.run(ctx, op, func(txCtx context.Context) error {
		sc, err := s.contracts.Find(txCtx, id)
		if err != nil {
			return translate(err, "sales contract")
		}
		if err := fn(sc); err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, kind, sc.ID, actor, sc, nil); err != nil {
			return err
		}
		return translate(s.contracts.Update(txCtx, sc.ID, sc), "sales contract")
	})
}

func (s *Service) run(ctx context.Context, op string, fn func(txCtx context.Context) error) error {
	err := s.tx.RunInTx(ctx, fn)
	s.metrics.ObserveOperation(component, op, err)
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "agriculture operation failed", "operation", op, "error", err)
	}
	return err
}

// translate maps store sentinels to domain codes; nil passes through.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "%s not found", what)
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.Newf(dErrors.CodeAlreadyExists, "%s already exists", what)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
	}
}
