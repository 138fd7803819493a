package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crossledger/internal/coordinator/models"
	"crossledger/internal/platform/middleware"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/httputil"
)

// CoordinatorService is the cross-module transaction coordinator.
type CoordinatorService interface {
	Create(ctx context.Context, c authz.Capability, modules domain.ModuleSet, value uint64) (domain.RecordID, error)
	Advance(ctx context.Context, c authz.Capability, id domain.RecordID, next models.Status) (*models.Transaction, error)
	Complete(ctx context.Context, c authz.Capability, id domain.RecordID) (*models.Transaction, error)
	Get(ctx context.Context, id domain.RecordID) (*models.Transaction, error)
	ListByInitiator(ctx context.Context, initiator domain.Wallet) ([]*models.Transaction, error)
}

type createTransactionRequest struct {
	Modules []string `json:"modules"`
	Value   uint64   `json:"value"`
}

type advanceRequest struct {
	Status models.Status `json:"status"`
}

func (h *Handler) registerCoordinator(r chi.Router) {
	r.Post("/transactions", h.handleCreateTransaction)
	r.Get("/transactions/{id}", h.handleGetTransaction)
	r.Post("/transactions/{id}/advance", h.handleAdvanceTransaction)
	r.Post("/transactions/{id}/complete", h.handleCompleteTransaction)
	r.Get("/entities/{wallet}/transactions", h.handleListTransactions)
}

func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.coordinator.Create(r.Context(), middleware.GetCapability(r.Context()), domain.NewModuleSet(req.Modules...), req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.coordinator.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) handleAdvanceTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req advanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.coordinator.Advance(r.Context(), middleware.GetCapability(r.Context()), id, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) handleCompleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.coordinator.Complete(r.Context(), middleware.GetCapability(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.coordinator.ListByInitiator(r.Context(), domain.Wallet(chi.URLParam(r, "wallet")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}
