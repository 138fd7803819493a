package models

import (
	"time"

	"crossledger/internal/ledger"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/money"
)

// CoveragePercent is the share of a covered visit paid by insurance.
const CoveragePercent = 80

// Visit is a billed healthcare visit. The coverage split is fixed when the
// visit is recorded. Long diagnoses are kept in the document store and only
// their handle is stored here.
type Visit struct {
	ID               domain.RecordID       `json:"id"`
	Patient          domain.Wallet         `json:"patient"`
	Facility         domain.Wallet         `json:"facility"`
	Diagnosis        string                `json:"diagnosis,omitempty"`
	DiagnosisRef     ledger.DocumentHandle `json:"diagnosis_ref,omitempty"`
	TotalCost        uint64                `json:"total_cost"`
	InsuranceCovered uint64                `json:"insurance_covered"`
	PatientPayment   uint64                `json:"patient_payment"`
	PolicyID         domain.RecordID       `json:"policy_id"`
	RecordedAt       time.Time             `json:"recorded_at"`
}

// NewVisit computes the split against policy, which may be nil.
func NewVisit(id domain.RecordID, patient, facility domain.Wallet, policy *Policy, cost uint64, now time.Time) (*Visit, error) {
	if patient.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "patient is required")
	}
	v := &Visit{
		ID:             id,
		Patient:        patient,
		Facility:       facility,
		TotalCost:      cost,
		PatientPayment: cost,
		RecordedAt:     now,
	}
	if policy.Covers(cost) {
		covered, err := money.Percent(cost, CoveragePercent)
		if err != nil {
			return nil, err
		}
		v.InsuranceCovered = covered
		v.PatientPayment = cost - covered
		v.PolicyID = policy.ID
	}
	return v, nil
}

func (v *Visit) Clone() *Visit {
	c := *v
	return &c
}
