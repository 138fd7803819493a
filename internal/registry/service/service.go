package service

import (
	"context"
	"errors"
	"log/slog"

	"crossledger/internal/ledger"
	"crossledger/internal/platform/metrics"
	"crossledger/internal/registry/models"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/audit"
	"crossledger/pkg/platform/sentinel"
	"crossledger/pkg/platform/tx"
	"crossledger/pkg/requestcontext"
)

const component = "registry"

type Store interface {
	Create(ctx context.Context, entity *models.Entity) error
	FindByWallet(ctx context.Context, wallet domain.Wallet) (*models.Entity, error)
	Update(ctx context.Context, entity *models.Entity) error
	Count(ctx context.Context) (int, error)
}

// Service owns entity identities, verification and reputation.
//
// Every mutating operation runs inside one transaction: the entity is loaded,
// validated, mutated on a copy, the ledger operation is enqueued, and only
// then is the copy written back.
type Service struct {
	store   Store
	emitter *ledger.Emitter
	tx      tx.Runner
	authz   *authz.Authorizer
	logger  *slog.Logger
	metrics *metrics.Metrics
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

// WithTx replaces the default serial transaction runner.
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

// New constructs a Service.
func New(store Store, emitter *ledger.Emitter, opts ...Option) *Service {
	s := &Service{
		store:   store,
		emitter: emitter,
		tx:      tx.NewSerial(),
		authz:   authz.NewAuthorizer(nil),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the entity for the caller's wallet.
func (s *Service) Register(ctx context.Context, c authz.Capability, typ domain.EntityType, modules domain.ModuleSet) (*models.Entity, error) {
	var created *models.Entity
	err := s.run(ctx, "register", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		entity, err := models.NewEntity(c.Subject, typ, modules, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		_, err = s.store.FindByWallet(txCtx, entity.Wallet)
		switch {
		case err == nil:
			return dErrors.Newf(dErrors.CodeAlreadyExists, "wallet %s is already registered", entity.Wallet)
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventEntityRegistered, models.RecordID(entity.Wallet), entity.Wallet, entity, nil); err != nil {
			return err
		}
		if err := s.store.Create(txCtx, entity); err != nil {
			return translate(err, "failed to create entity")
		}
		created = entity.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "entity registered",
		"wallet", created.Wallet,
		"type", created.Type,
		"modules", created.Modules,
	)
	return created, nil
}

// Verify marks wallet as verified. Requires verifier authority.
func (s *Service) Verify(ctx context.Context, c authz.Capability, wallet domain.Wallet) (*models.Entity, error) {
	if err := s.authz.Require(c, authz.RoleVerifier); err != nil {
		s.metrics.ObserveOperation(component, "verify", err)
		return nil, err
	}
	return s.mutate(ctx, "verify", wallet, c.Subject, audit.EventEntityVerified, func(e *models.Entity) error {
		if err := e.CanVerify(); err != nil {
			return err
		}
		e.ApplyVerification(requestcontext.Now(ctx))
		return nil
	})
}

// UpdateReputation adds delta to the wallet's reputation, clamped to
// [MinReputation, MaxReputation]. Requires module authority.
func (s *Service) UpdateReputation(ctx context.Context, c authz.Capability, wallet domain.Wallet, delta int64) (*models.Entity, error) {
	if err := s.authz.Require(c, authz.RoleModule); err != nil {
		s.metrics.ObserveOperation(component, "update_reputation", err)
		return nil, err
	}
	return s.mutate(ctx, "update_reputation", wallet, c.Subject, audit.EventReputationUpdated, func(e *models.Entity) error {
		e.ApplyReputationDelta(delta, requestcontext.Now(ctx))
		return nil
	})
}

// RecordCompletedTransaction increments the wallet's completed cross-module
// transaction counter. Requires module authority.
func (s *Service) RecordCompletedTransaction(ctx context.Context, c authz.Capability, wallet domain.Wallet) (*models.Entity, error) {
	if err := s.authz.Require(c, authz.RoleModule); err != nil {
		s.metrics.ObserveOperation(component, "record_transaction", err)
		return nil, err
	}
	return s.mutate(ctx, "record_transaction", wallet, c.Subject, audit.EventTransactionCompleted, func(e *models.Entity) error {
		e.ApplyTransactionRecorded(requestcontext.Now(ctx))
		return nil
	})
}

// ActivateModules adds modules to the caller's own entity.
func (s *Service) ActivateModules(ctx context.Context, c authz.Capability, modules domain.ModuleSet) (*models.Entity, error) {
	if err := authz.RequireSubject(c); err != nil {
		s.metrics.ObserveOperation(component, "activate_modules", err)
		return nil, err
	}
	if len(modules) == 0 {
		err := dErrors.New(dErrors.CodeInvalidInput, "at least one module is required")
		s.metrics.ObserveOperation(component, "activate_modules", err)
		return nil, err
	}
	return s.mutate(ctx, "activate_modules", c.Subject, c.Subject, audit.EventModulesActivated, func(e *models.Entity) error {
		e.ApplyModules(modules, requestcontext.Now(ctx))
		return nil
	})
}

// GetEntity returns a snapshot of the wallet's entity, or NotFound.
func (s *Service) GetEntity(ctx context.Context, wallet domain.Wallet) (*models.Entity, error) {
	entity, err := s.store.FindByWallet(ctx, wallet)
	if err != nil {
		return nil, translate(err, "failed to load entity")
	}
	return entity, nil
}

// IsVerified reports whether wallet is registered and verified. Unknown
// wallets are simply unverified.
func (s *Service) IsVerified(ctx context.Context, wallet domain.Wallet) (bool, error) {
	entity, err := s.store.FindByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	return entity.Verified, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count entities")
	}
	return n, nil
}

// mutate loads wallet's entity, applies fn to a copy, enqueues kind and
// persists the copy, all in one transaction.
func (s *Service) mutate(ctx context.Context, op string, wallet, actor domain.Wallet, kind audit.Action, fn func(*models.Entity) error) (*models.Entity, error) {
	var updated *models.Entity
	err := s.run(ctx, op, func(txCtx context.Context) error {
		entity, err := s.store.FindByWallet(txCtx, wallet)
		if err != nil {
			return translate(err, "failed to load entity")
		}
		if err := fn(entity); err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, kind, models.RecordID(wallet), actor, entity, nil); err != nil {
			return err
		}
		if err := s.store.Update(txCtx, entity); err != nil {
			return translate(err, "failed to update entity")
		}
		updated = entity.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "entity updated", "operation", op, "wallet", wallet)
	return updated, nil
}

func (s *Service) run(ctx context.Context, op string, fn func(txCtx context.Context) error) error {
	err := s.tx.RunInTx(ctx, fn)
	s.metrics.ObserveOperation(component, op, err)
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "registry operation failed", "operation", op, "error", err)
	}
	return err
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.New(dErrors.CodeAlreadyExists, "entity already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
