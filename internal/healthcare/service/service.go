package service

import (
	"context"
	"errors"
	"log/slog"

	"crossledger/internal/healthcare/models"
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

const component = "healthcare"

type Table[V any] interface {
	Create(ctx context.Context, id domain.RecordID, v V) error
	Find(ctx context.Context, id domain.RecordID) (V, error)
	Update(ctx context.Context, id domain.RecordID, v V) error
	ListByOwner(ctx context.Context, owner domain.Wallet) ([]V, error)
}

// CurrentPolicyStore tracks each patient's current policy.
type CurrentPolicyStore interface {
	Set(ctx context.Context, patient domain.Wallet, policyID domain.RecordID) error
	Get(ctx context.Context, patient domain.Wallet) (domain.RecordID, error)
}

// Service owns health policies and visit billing. Payment amounts come in by
// value from the caller; the engine never moves funds itself.
type Service struct {
	policies  Table[*models.Policy]
	visits    Table[*models.Visit]
	current   CurrentPolicyStore
	documents ledger.DocumentStore
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

// WithDocumentStore enables diagnoses longer than ledger.InlineDocumentLimit.
func WithDocumentStore(d ledger.DocumentStore) Option {
	return func(s *Service) {
		s.documents = d
	}
}

func New(policies Table[*models.Policy], visits Table[*models.Visit], current CurrentPolicyStore, emitter *ledger.Emitter, opts ...Option) *Service {
	s := &Service{
		policies: policies,
		visits:   visits,
		current:  current,
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

// CreatePolicy issues a policy to the caller and makes it their current one.
func (s *Service) CreatePolicy(ctx context.Context, c authz.Capability, planType string, monthlyPremium, coverageLimit uint64, autoDeduct bool) (domain.RecordID, error) {
	var id domain.RecordID
	err := s.run(ctx, "create_policy", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		policyID := s.emitter.NewRecordID(txCtx, c.Subject, "health_policy", planType, monthlyPremium, coverageLimit, autoDeduct)
		p, err := models.NewPolicy(policyID, c.Subject, planType, monthlyPremium, coverageLimit, autoDeduct, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventHealthPolicyCreated, p.ID, c.Subject, p, nil); err != nil {
			return err
		}
		if err := s.policies.Create(txCtx, p.ID, p); err != nil {
			return translate(err, "health policy")
		}
		if err := s.current.Set(txCtx, p.Patient, p.ID); err != nil {
			return translate(err, "current policy")
		}
		id = p.ID
		return nil
	})
	return id, err
}

// DeductPremium authorizes a premium deduction against the patient's current
// policy. The caller is the patient or holds module authority.
func (s *Service) DeductPremium(ctx context.Context, c authz.Capability, patient domain.Wallet, amount uint64) (models.Deduction, error) {
	var deduction models.Deduction
	err := s.run(ctx, "deduct_premium", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		if c.Subject != patient && !s.authz.Allows(c, authz.RoleModule) {
			return dErrors.New(dErrors.CodeUnauthorized, "only the patient or a module may deduct premiums")
		}
		p, err := s.currentPolicy(txCtx, patient)
		if err != nil {
			return err
		}
		if p == nil {
			return dErrors.Newf(dErrors.CodeNotActive, "patient %s has no policy", patient)
		}
		d, err := p.AuthorizeDeduction(amount, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		op, err := s.emitter.Emit(txCtx, audit.EventPremiumDeducted, p.ID, c.Subject, d, nil)
		if err != nil {
			return err
		}
		d.OperationID = op.ID
		deduction = d
		return nil
	})
	return deduction, err
}

// RecordVisit bills a visit at the calling facility. Requires provider
// authority. Diagnoses above ledger.InlineDocumentLimit are stored in the
// document store before the transaction starts.
func (s *Service) RecordVisit(ctx context.Context, c authz.Capability, patient domain.Wallet, diagnosis string, cost uint64) (domain.RecordID, error) {
	if err := s.authz.Require(c, authz.RoleProvider); err != nil {
		s.metrics.ObserveOperation(component, "record_visit", err)
		return domain.RecordID{}, err
	}
	var ref ledger.DocumentHandle
	if len(diagnosis) > ledger.InlineDocumentLimit {
		if s.documents == nil {
			err := dErrors.New(dErrors.CodeUnavailable, "document store is not configured")
			s.metrics.ObserveOperation(component, "record_visit", err)
			return domain.RecordID{}, err
		}
		h, err := s.documents.Put(ctx, []byte(diagnosis))
		if err != nil {
			err = dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store diagnosis")
			s.metrics.ObserveOperation(component, "record_visit", err)
			return domain.RecordID{}, err
		}
		ref = h
	}

	var id domain.RecordID
	err := s.run(ctx, "record_visit", func(txCtx context.Context) error {
		p, err := s.currentPolicy(txCtx, patient)
		if err != nil {
			return err
		}
		visitID := s.emitter.NewRecordID(txCtx, c.Subject, "visit", patient, cost)
		v, err := models.NewVisit(visitID, patient, c.Subject, p, cost, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if ref != "" {
			v.DiagnosisRef = ref
		} else {
			v.Diagnosis = diagnosis
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventVisitRecorded, v.ID, c.Subject, v, nil); err != nil {
			return err
		}
		if err := s.visits.Create(txCtx, v.ID, v); err != nil {
			return translate(err, "visit")
		}
		id = v.ID
		return nil
	})
	return id, err
}

// DeactivatePolicy ends one of the caller's policies.
func (s *Service) DeactivatePolicy(ctx context.Context, c authz.Capability, policyID domain.RecordID) error {
	return s.run(ctx, "deactivate_policy", func(txCtx context.Context) error {
		if err := authz.RequireSubject(c); err != nil {
			return err
		}
		p, err := s.policies.Find(txCtx, policyID)
		if err != nil {
			return translate(err, "health policy")
		}
		if p.Patient != c.Subject {
			return dErrors.New(dErrors.CodeNotOwner, "policy belongs to another patient")
		}
		if err := p.Deactivate(requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if _, err := s.emitter.Emit(txCtx, audit.EventHealthPolicyDeactivated, p.ID, c.Subject, p, nil); err != nil {
			return err
		}
		return translate(s.policies.Update(txCtx, p.ID, p), "health policy")
	})
}

func (s *Service) GetPolicy(ctx context.Context, id domain.RecordID) (*models.Policy, error) {
	p, err := s.policies.Find(ctx, id)
	if err != nil {
		return nil, translate(err, "health policy")
	}
	return p, nil
}

// CurrentPolicy returns the patient's latest policy, active or not.
func (s *Service) CurrentPolicy(ctx context.Context, patient domain.Wallet) (*models.Policy, error) {
	p, err := s.currentPolicy(ctx, patient)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "patient %s has no policy", patient)
	}
	return p, nil
}

func (s *Service) PoliciesByPatient(ctx context.Context, patient domain.Wallet) ([]*models.Policy, error) {
	list, err := s.policies.ListByOwner(ctx, patient)
	if err != nil {
		return nil, translate(err, "health policy")
	}
	return list, nil
}

func (s *Service) GetVisit(ctx context.Context, id domain.RecordID) (*models.Visit, error) {
	v, err := s.visits.Find(ctx, id)
	if err != nil {
		return nil, translate(err, "visit")
	}
	return v, nil
}

func (s *Service) VisitsByPatient(ctx context.Context, patient domain.Wallet) ([]*models.Visit, error) {
	list, err := s.visits.ListByOwner(ctx, patient)
	if err != nil {
		return nil, translate(err, "visit")
	}
	return list, nil
}

// Diagnosis returns a visit's diagnosis text, fetching it from the document
// store when it was too long to keep inline.
func (s *Service) Diagnosis(ctx context.Context, visitID domain.RecordID) (string, error) {
	v, err := s.GetVisit(ctx, visitID)
	if err != nil {
		return "", err
	}
	if v.DiagnosisRef == "" {
		return v.Diagnosis, nil
	}
	if s.documents == nil {
		return "", dErrors.New(dErrors.CodeUnavailable, "document store is not configured")
	}
	blob, err := s.documents.Get(ctx, v.DiagnosisRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "diagnosis document not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load diagnosis")
	}
	return string(blob), nil
}

// currentPolicy returns nil without error when the patient has none.
func (s *Service) currentPolicy(ctx context.Context, patient domain.Wallet) (*models.Policy, error) {
	id, err := s.current.Get(ctx, patient)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "current policy")
	}
	p, err := s.policies.Find(ctx, id)
	if err != nil {
		return nil, translate(err, "health policy")
	}
	return p, nil
}

func (s *Service) run(ctx context.Context, op string, fn func(txCtx context.Context) error) error {
	err := s.tx.RunInTx(ctx, fn)
	s.metrics.ObserveOperation(component, op, err)
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "healthcare operation failed", "operation", op, "error", err)
	}
	return err
}

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
