package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crossledger/internal/platform/middleware"
	"crossledger/internal/sustainability/models"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/httputil"
)

// SustainabilityService is the carbon credit ledger.
type SustainabilityService interface {
	Award(ctx context.Context, c authz.Capability, entity domain.Wallet, amount uint64, projectType string) (domain.RecordID, error)
	Retire(ctx context.Context, c authz.Capability, creditID domain.RecordID) error
	Balance(ctx context.Context, entity domain.Wallet) (uint64, error)
	RetiredTotal(ctx context.Context, entity domain.Wallet) (uint64, error)
	GetCredit(ctx context.Context, id domain.RecordID) (*models.Credit, error)
}

type awardRequest struct {
	Entity      domain.Wallet `json:"entity"`
	Amount      uint64        `json:"amount"`
	ProjectType string        `json:"project_type"`
}

type balanceResponse struct {
	Entity  domain.Wallet `json:"entity"`
	Balance uint64        `json:"balance"`
	Retired uint64        `json:"retired"`
}

func (h *Handler) registerSustainability(r chi.Router) {
	r.Route("/sustainability", func(r chi.Router) {
		r.Post("/credits", h.handleAwardCredits)
		r.Get("/credits/{id}", h.handleGetCredit)
		r.Post("/credits/{id}/retire", h.handleRetireCredit)
		r.Get("/balances/{wallet}", h.handleBalance)
	})
}

func (h *Handler) handleAwardCredits(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.sustainability.Award(r.Context(), middleware.GetCapability(r.Context()), req.Entity, req.Amount, req.ProjectType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) handleGetCredit(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cr, err := h.sustainability.GetCredit(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cr)
}

func (h *Handler) handleRetireCredit(w http.ResponseWriter, r *http.Request) {
	h.withRecord(w, r, func(ctx context.Context, c authz.Capability, id domain.RecordID) error {
		return h.sustainability.Retire(ctx, c, id)
	})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	entity := domain.Wallet(chi.URLParam(r, "wallet"))
	balance, err := h.sustainability.Balance(r.Context(), entity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	retired, err := h.sustainability.RetiredTotal(r.Context(), entity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Entity: entity, Balance: balance, Retired: retired})
}
