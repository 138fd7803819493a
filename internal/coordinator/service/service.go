package service

import (
	"context"
	"errors"
	"log/slog"

	"crossledger/internal/coordinator/models"
	"crossledger/internal/ledger"
	"crossledger/internal/platform/metrics"
	registryModels "crossledger/internal/registry/models"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/audit"
	"crossledger/pkg/platform/sentinel"
	"crossledger/pkg/platform/tx"
	"crossledger/pkg/requestcontext"
)

const component = "coordinator"

type Store interface {
	Create(ctx context.Context, t *models.Transaction) error
	FindByID(ctx context.Context, id domain.RecordID) (*models.Transaction, error)
	Update(ctx context.Context, t *models.Transaction) error
	ListByInitiator(ctx context.Context, initiator domain.Wallet) ([]*models.Transaction, error)
}

// Registry is the slice of the entity registry the coordinator depends on.
type Registry interface {
	IsVerified(ctx context.Context, wallet domain.Wallet) (bool, error)
	RecordCompletedTransaction(ctx context.Context, c authz.Capability, wallet domain.Wallet) (*registryModels.Entity, error)
}

// Service tracks cross-module transaction lifecycles.
type Service struct {
	store    Store
	registry Registry
	emitter  *ledger.Emitter
	tx       tx.Runner
	authz    *authz.Authorizer
	logger   *slog.Logger
	metrics  *metrics.Metrics
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

func New(store Store, registry Registry, emitter *ledger.Emitter, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		emitter:  emitter,
		tx:       tx.NewSerial(),
		authz:    authz.NewAuthorizer(nil),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a pending transaction initiated by the caller, who must be a
// verified entity.
func (s *Service) Create(ctx context.Context, c authz.Capability, modules domain.ModuleSet, value uint64) (domain.RecordID, error) {
	var id domain.RecordID
	err := s.run(ctx, "create", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		verified, err := s.registry.IsVerified(txCtx, c.Subject)
		if err != nil {
			return err
		}
		if !verified {
			return dErrors.Newf(dErrors.CodeUnverified, "initiator %s is not verified", c.Subject)
		}
		now := requestcontext.Now(txCtx)
		t, err := models.NewTransaction(s.emitter.NewRecordID(txCtx, c.Subject, "crosstx", modules, value), c.Subject, modules, value, now)
		if err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventCrossTxCreated, t.ID, c.Subject, t, nil); err != nil {
			return err
		}
		if err := s.store.Create(txCtx, t); err != nil {
			return translate(err, "failed to create transaction")
		}
		id = t.ID
		return nil
	})
	if err != nil {
		return domain.RecordID{}, err
	}
	s.logger.InfoContext(ctx, "cross-module transaction created",
		"tx_id", id,
		"initiator", c.Subject,
		"modules", modules,
	)
	return id, nil
}

// Advance moves a transaction along its lifecycle. Requires module authority.
func (s *Service) Advance(ctx context.Context, c authz.Capability, id domain.RecordID, next models.Status) (*models.Transaction, error) {
	var updated *models.Transaction
	err := s.run(ctx, "advance", func(txCtx context.Context) error {
		if err := s.authz.Require(c, authz.RoleModule); err != nil {
			return err
		}
		t, err := s.store.FindByID(txCtx, id)
		if err != nil {
			return translate(err, "failed to load transaction")
		}
		if err := t.Advance(next, requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventCrossTxAdvanced, t.ID, c.Subject, t, nil); err != nil {
			return err
		}
		if err := s.store.Update(txCtx, t); err != nil {
			return translate(err, "failed to update transaction")
		}
		updated = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Complete finishes a processing transaction and credits the initiator's
// completed-transaction counter in the registry. Requires module authority.
func (s *Service) Complete(ctx context.Context, c authz.Capability, id domain.RecordID) (*models.Transaction, error) {
	var updated *models.Transaction
	err := s.run(ctx, "complete", func(txCtx context.Context) error {
		if err := s.authz.Require(c, authz.RoleModule); err != nil {
			return err
		}
		t, err := s.store.FindByID(txCtx, id)
		if err != nil {
			return translate(err, "failed to load transaction")
		}
		if err := t.Complete(requestcontext.Now(txCtx)); err != nil {
			return err
		}
		// Registry first: if it refuses, nothing here has changed yet.
		if _, err := s.registry.RecordCompletedTransaction(txCtx, c, t.Initiator); err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventCrossTxComplete, t.ID, c.Subject, t, nil); err != nil {
			return err
		}
		if err := s.store.Update(txCtx, t); err != nil {
			return translate(err, "failed to update transaction")
		}
		updated = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "cross-module transaction completed", "tx_id", id, "initiator", updated.Initiator)
	return updated, nil
}

// Get returns a snapshot of the transaction, or NotFound.
func (s *Service) Get(ctx context.Context, id domain.RecordID) (*models.Transaction, error) {
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load transaction")
	}
	return t, nil
}

// ListByInitiator returns the wallet's transactions in creation order.
func (s *Service) ListByInitiator(ctx context.Context, initiator domain.Wallet) ([]*models.Transaction, error) {
	list, err := s.store.ListByInitiator(ctx, initiator)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transactions")
	}
	return list, nil
}

func (s *Service) CountByInitiator(ctx context.Context, initiator domain.Wallet) (int, error) {
	list, err := s.ListByInitiator(ctx, initiator)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (s *Service) run(ctx context.Context, op string, fn func(txCtx context.Context) error) error {
	err := s.tx.RunInTx(ctx, fn)
	s.metrics.ObserveOperation(component, op, err)
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "coordinator operation failed", "operation", op, "error", err)
	}
	return err
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "transaction not found")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.New(dErrors.CodeAlreadyExists, "transaction already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
