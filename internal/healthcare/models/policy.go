package models

import (
	"strings"
	"time"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
)

// Policy is a patient's health insurance plan. Superseded policies stay
// addressable by id; only the patient's current policy is used for billing.
type Policy struct {
	ID             domain.RecordID `json:"id"`
	Patient        domain.Wallet   `json:"patient"`
	PlanType       string          `json:"plan_type"`
	MonthlyPremium uint64          `json:"monthly_premium"`
	CoverageLimit  uint64          `json:"coverage_limit"`
	AutoDeduct     bool            `json:"auto_deduct"`
	Active         bool            `json:"active"`
	StartAt        time.Time       `json:"start_at"`
	DeactivatedAt  time.Time       `json:"deactivated_at,omitzero"`
}

func NewPolicy(id domain.RecordID, patient domain.Wallet, planType string, monthlyPremium, coverageLimit uint64, autoDeduct bool, now time.Time) (*Policy, error) {
	planType = strings.TrimSpace(planType)
	if patient.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "patient is required")
	}
	if planType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "plan type is required")
	}
	return &Policy{
		ID:             id,
		Patient:        patient,
		PlanType:       planType,
		MonthlyPremium: monthlyPremium,
		CoverageLimit:  coverageLimit,
		AutoDeduct:     autoDeduct,
		Active:         true,
		StartAt:        now,
	}, nil
}

// Deduction is an authorized premium deduction. Moving the funds is up to
// the caller.
type Deduction struct {
	PolicyID    domain.RecordID `json:"policy_id"`
	Patient     domain.Wallet   `json:"patient"`
	Amount      uint64          `json:"amount"`
	Premium     uint64          `json:"premium"`
	OperationID domain.RecordID `json:"operation_id"`
	DeductedAt  time.Time       `json:"deducted_at"`
}

// AuthorizeDeduction checks amount covers the monthly premium.
func (p *Policy) AuthorizeDeduction(amount uint64, now time.Time) (Deduction, error) {
	if !p.Active {
		return Deduction{}, dErrors.New(dErrors.CodeNotActive, "policy is not active")
	}
	if !p.AutoDeduct {
		return Deduction{}, dErrors.New(dErrors.CodeAutoDeductDisabled, "auto-deduct is disabled for this policy")
	}
	if amount < p.MonthlyPremium {
		return Deduction{}, dErrors.Newf(dErrors.CodeInsufficientAmount, "amount %d is below monthly premium %d", amount, p.MonthlyPremium)
	}
	return Deduction{
		PolicyID:   p.ID,
		Patient:    p.Patient,
		Amount:     amount,
		Premium:    p.MonthlyPremium,
		DeductedAt: now,
	}, nil
}

func (p *Policy) Deactivate(now time.Time) error {
	if !p.Active {
		return dErrors.New(dErrors.CodeNotActive, "policy is already inactive")
	}
	p.Active = false
	p.DeactivatedAt = now
	return nil
}

// Covers reports whether the policy pays toward a visit costing cost.
func (p *Policy) Covers(cost uint64) bool {
	return p != nil && p.Active && cost <= p.CoverageLimit
}

func (p *Policy) Clone() *Policy {
	c := *p
	return &c
}
