package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crossledger/internal/platform/middleware"
	"crossledger/internal/registry/models"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/httputil"
)

// RegistryService is the subset of the entity registry served over HTTP.
type RegistryService interface {
	Register(ctx context.Context, c authz.Capability, typ domain.EntityType, modules domain.ModuleSet) (*models.Entity, error)
	Verify(ctx context.Context, c authz.Capability, wallet domain.Wallet) (*models.Entity, error)
	UpdateReputation(ctx context.Context, c authz.Capability, wallet domain.Wallet, delta int64) (*models.Entity, error)
	ActivateModules(ctx context.Context, c authz.Capability, modules domain.ModuleSet) (*models.Entity, error)
	GetEntity(ctx context.Context, wallet domain.Wallet) (*models.Entity, error)
}

type registerRequest struct {
	Type    string   `json:"type"`
	Modules []string `json:"modules"`
}

type reputationRequest struct {
	Delta int64 `json:"delta"`
}

type modulesRequest struct {
	Modules []string `json:"modules"`
}

func (h *Handler) registerRegistry(r chi.Router) {
	r.Post("/entities", h.handleRegister)
	r.Get("/entities/{wallet}", h.handleGetEntity)
	r.Post("/entities/{wallet}/verify", h.handleVerify)
	r.Post("/entities/{wallet}/reputation", h.handleReputation)
	r.Post("/me/modules", h.handleActivateModules)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	typ, err := domain.ParseEntityType(req.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.registry.Register(r.Context(), middleware.GetCapability(r.Context()), typ, domain.NewModuleSet(req.Modules...))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := h.registry.GetEntity(r.Context(), domain.Wallet(chi.URLParam(r, "wallet")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	e, err := h.registry.Verify(r.Context(), middleware.GetCapability(r.Context()), domain.Wallet(chi.URLParam(r, "wallet")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleReputation(w http.ResponseWriter, r *http.Request) {
	var req reputationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.registry.UpdateReputation(r.Context(), middleware.GetCapability(r.Context()), domain.Wallet(chi.URLParam(r, "wallet")), req.Delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleActivateModules(w http.ResponseWriter, r *http.Request) {
	var req modulesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.registry.ActivateModules(r.Context(), middleware.GetCapability(r.Context()), domain.NewModuleSet(req.Modules...))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}
