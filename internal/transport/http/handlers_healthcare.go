package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crossledger/internal/healthcare/models"
	"crossledger/internal/platform/middleware"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/httputil"
)

// HealthcareService is the health insurance engine.
type HealthcareService interface {
	CreatePolicy(ctx context.Context, c authz.Capability, planType string, monthlyPremium, coverageLimit uint64, autoDeduct bool) (domain.RecordID, error)
	DeductPremium(ctx context.Context, c authz.Capability, patient domain.Wallet, amount uint64) (models.Deduction, error)
	RecordVisit(ctx context.Context, c authz.Capability, patient domain.Wallet, diagnosis string, cost uint64) (domain.RecordID, error)
	DeactivatePolicy(ctx context.Context, c authz.Capability, policyID domain.RecordID) error
	CurrentPolicy(ctx context.Context, patient domain.Wallet) (*models.Policy, error)
	GetVisit(ctx context.Context, id domain.RecordID) (*models.Visit, error)
	Diagnosis(ctx context.Context, visitID domain.RecordID) (string, error)
}

type healthPolicyRequest struct {
	PlanType       string `json:"plan_type"`
	MonthlyPremium uint64 `json:"monthly_premium"`
	CoverageLimit  uint64 `json:"coverage_limit"`
	AutoDeduct     bool   `json:"auto_deduct"`
}

type deductionRequest struct {
	Patient domain.Wallet `json:"patient"`
	Amount  uint64        `json:"amount"`
}

type visitRequest struct {
	Patient   domain.Wallet `json:"patient"`
	Diagnosis string        `json:"diagnosis"`
	Cost      uint64        `json:"cost"`
}

type diagnosisResponse struct {
	Diagnosis string `json:"diagnosis"`
}

func (h *Handler) registerHealthcare(r chi.Router) {
	r.Route("/healthcare", func(r chi.Router) {
		r.Post("/policies", h.handleCreateHealthPolicy)
		r.Post("/policies/{id}/deactivate", h.handleDeactivateHealthPolicy)
		r.Get("/patients/{wallet}/policy", h.handleCurrentHealthPolicy)
		r.Post("/deductions", h.handleDeductPremium)
		r.Post("/visits", h.handleRecordVisit)
		r.Get("/visits/{id}", h.handleGetVisit)
		r.Get("/visits/{id}/diagnosis", h.handleGetDiagnosis)
	})
}

func (h *Handler) handleCreateHealthPolicy(w http.ResponseWriter, r *http.Request) {
	var req healthPolicyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.healthcare.CreatePolicy(r.Context(), middleware.GetCapability(r.Context()),
		req.PlanType, req.MonthlyPremium, req.CoverageLimit, req.AutoDeduct)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) handleDeactivateHealthPolicy(w http.ResponseWriter, r *http.Request) {
	h.withRecord(w, r, func(ctx context.Context, c authz.Capability, id domain.RecordID) error {
		return h.healthcare.DeactivatePolicy(ctx, c, id)
	})
}

func (h *Handler) handleCurrentHealthPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.healthcare.CurrentPolicy(r.Context(), domain.Wallet(chi.URLParam(r, "wallet")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeductPremium(w http.ResponseWriter, r *http.Request) {
	var req deductionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.healthcare.DeductPremium(r.Context(), middleware.GetCapability(r.Context()), req.Patient, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleRecordVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.healthcare.RecordVisit(r.Context(), middleware.GetCapability(r.Context()), req.Patient, req.Diagnosis, req.Cost)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.healthcare.GetVisit(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetDiagnosis(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	text, err := h.healthcare.Diagnosis(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, diagnosisResponse{Diagnosis: text})
}
