package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crossledger/internal/agriculture/models"
	"crossledger/internal/platform/middleware"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/httputil"
)

// AgricultureService is the harvest, escrow and crop insurance engine.
type AgricultureService interface {
	RecordHarvest(ctx context.Context, c authz.Capability, cropType string, quantity uint64, grade uint8) (domain.RecordID, error)
	VerifyHarvest(ctx context.Context, c authz.Capability, harvestID domain.RecordID) error
	CreateSalesContract(ctx context.Context, c authz.Capability, buyer domain.Wallet, harvestID domain.RecordID, quantity, pricePerUnit uint64) (domain.RecordID, error)
	DepositEscrow(ctx context.Context, c authz.Capability, contractID domain.RecordID, amount uint64) error
	ConfirmDeliveryAndQuality(ctx context.Context, c authz.Capability, contractID domain.RecordID) error
	ProcessPayment(ctx context.Context, c authz.Capability, contractID domain.RecordID) (models.PaymentReceipt, error)
	CreateInsurancePolicy(ctx context.Context, c authz.Capability, cropType string, insuredValue, coveragePct, durationDays, paidPremium uint64) (domain.RecordID, error)
	ProcessInsurancePayout(ctx context.Context, c authz.Capability, policyID domain.RecordID, payoutPct uint64) (uint64, error)
	GetHarvest(ctx context.Context, id domain.RecordID) (*models.Harvest, error)
	GetContract(ctx context.Context, id domain.RecordID) (*models.SalesContract, error)
	GetPolicy(ctx context.Context, id domain.RecordID) (*models.CropPolicy, error)
}

type harvestRequest struct {
	CropType string `json:"crop_type"`
	Quantity uint64 `json:"quantity"`
	Grade    uint8  `json:"grade"`
}

type contractRequest struct {
	Buyer        domain.Wallet   `json:"buyer"`
	HarvestID    domain.RecordID `json:"harvest_id"`
	Quantity     uint64          `json:"quantity"`
	PricePerUnit uint64          `json:"price_per_unit"`
}

func (r contractRequest) validate() error {
	if r.HarvestID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "harvest_id is required")
	}
	return nil
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type cropPolicyRequest struct {
	CropType     string `json:"crop_type"`
	InsuredValue uint64 `json:"insured_value"`
	CoveragePct  uint64 `json:"coverage_pct"`
	DurationDays uint64 `json:"duration_days"`
	PaidPremium  uint64 `json:"paid_premium"`
}

type payoutRequest struct {
	PayoutPct uint64 `json:"payout_pct"`
}

type payoutResponse struct {
	Payout uint64 `json:"payout"`
}

func (h *Handler) registerAgriculture(r chi.Router) {
	r.Route("/agriculture", func(r chi.Router) {
		r.Post("/harvests", h.handleRecordHarvest)
		r.Get("/harvests/{id}", h.handleGetHarvest)
		r.Post("/harvests/{id}/verify", h.handleVerifyHarvest)

		r.Post("/contracts", h.handleCreateContract)
		r.Get("/contracts/{id}", h.handleGetContract)
		r.Post("/contracts/{id}/escrow", h.handleDepositEscrow)
		r.Post("/contracts/{id}/delivery", h.handleConfirmDelivery)
		r.Post("/contracts/{id}/payment", h.handleProcessPayment)

		r.Post("/policies", h.handleCreateCropPolicy)
		r.Get("/policies/{id}", h.handleGetCropPolicy)
		r.Post("/policies/{id}/payout", h.handleCropPayout)
	})
}

func (h *Handler) handleRecordHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.agriculture.RecordHarvest(r.Context(), middleware.GetCapability(r.Context()), req.CropType, req.Quantity, req.Grade)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) handleGetHarvest(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	harvest, err := h.agriculture.GetHarvest(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, harvest)
}

func (h *Handler) handleVerifyHarvest(w http.ResponseWriter, r *http.Request) {
	h.withRecord(w, r, func(ctx context.Context, c authz.Capability, id domain.RecordID) error {
		return h.agriculture.VerifyHarvest(ctx, c, id)
	})
}

func (h *Handler) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.agriculture.CreateSalesContract(r.Context(), middleware.GetCapability(r.Context()),
		req.Buyer, req.HarvestID, req.Quantity, req.PricePerUnit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) handleGetContract(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sc, err := h.agriculture.GetContract(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sc)
}

func (h *Handler) handleDepositEscrow(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.withRecord(w, r, func(ctx context.Context, c authz.Capability, id domain.RecordID) error {
		return h.agriculture.DepositEscrow(ctx, c, id, req.Amount)
	})
}

func (h *Handler) handleConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.withRecord(w, r, func(ctx context.Context, c authz.Capability, id domain.RecordID) error {
		return h.agriculture.ConfirmDeliveryAndQuality(ctx, c, id)
	})
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	receipt, err := h.agriculture.ProcessPayment(r.Context(), middleware.GetCapability(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleCreateCropPolicy(w http.ResponseWriter, r *http.Request) {
	var req cropPolicyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.agriculture.CreateInsurancePolicy(r.Context(), middleware.GetCapability(r.Context()),
		req.CropType, req.InsuredValue, req.CoveragePct, req.DurationDays, req.PaidPremium)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) handleGetCropPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.agriculture.GetPolicy(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCropPayout(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req payoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	payout, err := h.agriculture.ProcessInsurancePayout(r.Context(), middleware.GetCapability(r.Context()), id, req.PayoutPct)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payoutResponse{Payout: payout})
}

// withRecord runs fn for the {id} record and answers 204 on success.
func (h *Handler) withRecord(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, c authz.Capability, id domain.RecordID) error) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := fn(r.Context(), middleware.GetCapability(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
