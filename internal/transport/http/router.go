// Package httptransport exposes the ledger components over HTTP. Handlers
// decode requests, take the caller's capability from context and delegate to
// the component services without adding business rules.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crossledger/internal/platform/middleware"
	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/httputil"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps collects everything the router serves.
type Deps struct {
	Registry       RegistryService
	Coordinator    CoordinatorService
	Agriculture    AgricultureService
	Healthcare     HealthcareService
	Sustainability SustainabilityService

	Capabilities middleware.CapabilityParser
	Gatherer     prometheus.Gatherer
	Health       map[string]HealthCheck
	Logger       *slog.Logger

	// RateLimit, when set, runs after the capability check.
	RateLimit func(http.Handler) http.Handler
}

// Handler serves the v1 API.
type Handler struct {
	registry       RegistryService
	coordinator    CoordinatorService
	agriculture    AgricultureService
	healthcare     HealthcareService
	sustainability SustainabilityService
	logger         *slog.Logger
}

// NewRouter wires the ops endpoints and the authenticated v1 API.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		registry:       d.Registry,
		coordinator:    d.Coordinator,
		agriculture:    d.Agriculture,
		healthcare:     d.Healthcare,
		sustainability: d.Sustainability,
		logger:         logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.RequestTime)

	r.Get("/healthz", healthz(d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireCapability(d.Capabilities, logger))
		if d.RateLimit != nil {
			r.Use(d.RateLimit)
		}
		h.registerRegistry(r)
		h.registerCoordinator(r)
		h.registerAgriculture(r)
		h.registerHealthcare(r)
		h.registerSustainability(r)
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": report})
	}
}

// idResponse is returned by every create endpoint.
type idResponse struct {
	ID domain.RecordID `json:"id"`
}

func recordIDParam(r *http.Request, name string) (domain.RecordID, error) {
	return domain.ParseRecordID(chi.URLParam(r, name))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, err)
}
