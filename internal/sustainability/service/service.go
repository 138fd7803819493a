package service

import (
	"context"
	"errors"
	"log/slog"

	"crossledger/internal/ledger"
	"crossledger/internal/platform/metrics"
	"crossledger/internal/sustainability/models"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/audit"
	"crossledger/pkg/platform/money"
	"crossledger/pkg/platform/sentinel"
	"crossledger/pkg/platform/tx"
	"crossledger/pkg/requestcontext"
)

const component = "sustainability"

type CreditStore interface {
	Create(ctx context.Context, id domain.RecordID, c *models.Credit) error
	Find(ctx context.Context, id domain.RecordID) (*models.Credit, error)
	Update(ctx context.Context, id domain.RecordID, c *models.Credit) error
	ListByOwner(ctx context.Context, owner domain.Wallet) ([]*models.Credit, error)
}

type AccountStore interface {
	Get(ctx context.Context, entity domain.Wallet) (models.Account, error)
	Put(ctx context.Context, acct models.Account) error
}

// Service issues and retires carbon credits and keeps entity balances.
type Service struct {
	credits  CreditStore
	accounts AccountStore
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

func New(credits CreditStore, accounts AccountStore, emitter *ledger.Emitter, opts ...Option) *Service {
	s := &Service{
		credits:  credits,
		accounts: accounts,
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

// Award issues a verified credit of amount tons to entity. Requires verifier
// authority.
func (s *Service) Award(ctx context.Context, c authz.Capability, entity domain.Wallet, amount uint64, projectType string) (domain.RecordID, error) {
	var credit *models.Credit
	err := s.run(ctx, "award", func(txCtx context.Context) error {
		if err := s.authz.Require(c, authz.RoleVerifier); err != nil {
			return err
		}
		id := s.emitter.NewRecordID(txCtx, c.Subject, "credit", entity, amount, projectType)
		cr, err := models.NewCredit(id, entity, amount, projectType, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		acct, err := s.accounts.Get(txCtx, entity)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}
		if acct.Balance, err = money.Add(acct.Balance, amount); err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventCreditsAwarded, cr.ID, c.Subject, cr, nil); err != nil {
			return err
		}
		if err := s.credits.Create(txCtx, cr.ID, cr); err != nil {
			return translate(err)
		}
		if err := s.accounts.Put(txCtx, acct); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store account")
		}
		credit = cr
		return nil
	})
	if err != nil {
		return domain.RecordID{}, err
	}
	s.logger.InfoContext(ctx, "carbon credits awarded",
		"credit_id", credit.ID,
		"entity", credit.Entity,
		"amount", credit.Amount,
		"vintage", credit.Vintage,
	)
	return credit.ID, nil
}

// Retire retires one of the caller's credits and removes it from their
// balance.
func (s *Service) Retire(ctx context.Context, c authz.Capability, creditID domain.RecordID) error {
	return s.run(ctx, "retire", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		cr, err := s.credits.Find(txCtx, creditID)
		if err != nil {
			return translate(err)
		}
		if err := cr.Retire(c.Subject, requestcontext.Now(txCtx)); err != nil {
			return err
		}
		acct, err := s.accounts.Get(txCtx, cr.Entity)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}
		if acct.Balance, err = money.Sub(acct.Balance, cr.Amount); err != nil {
			return err
		}
		if acct.Retired, err = money.Add(acct.Retired, cr.Amount); err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventCreditsRetired, cr.ID, c.Subject, cr, nil); err != nil {
			return err
		}
		if err := s.credits.Update(txCtx, cr.ID, cr); err != nil {
			return translate(err)
		}
		if err := s.accounts.Put(txCtx, acct); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store account")
		}
		return nil
	})
}

// Balance returns the entity's unretired credit total.
func (s *Service) Balance(ctx context.Context, entity domain.Wallet) (uint64, error) {
	acct, err := s.accounts.Get(ctx, entity)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return acct.Balance, nil
}

// RetiredTotal returns how many tons the entity has retired.
func (s *Service) RetiredTotal(ctx context.Context, entity domain.Wallet) (uint64, error) {
	acct, err := s.accounts.Get(ctx, entity)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return acct.Retired, nil
}

func (s *Service) GetCredit(ctx context.Context, id domain.RecordID) (*models.Credit, error) {
	cr, err := s.credits.Find(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return cr, nil
}

func (s *Service) CreditsByEntity(ctx context.Context, entity domain.Wallet) ([]*models.Credit, error) {
	list, err := s.credits.ListByOwner(ctx, entity)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

func (s *Service) run(ctx context.Context, op string, fn func(txCtx context.Context) error) error {
	err := s.tx.RunInTx(ctx, fn)
	s.metrics.ObserveOperation(component, op, err)
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "sustainability operation failed", "operation", op, "error", err)
	}
	return err
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "carbon credit not found")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.New(dErrors.CodeAlreadyExists, "carbon credit already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access carbon credit")
	}
}
