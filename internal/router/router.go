package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samims/ctxrelay/internal/handler"
	customMiddleware "github.com/samims/ctxrelay/internal/middleware"
)

func NewRouter(h *handler.ContextHandler, healthHandler *handler.HealthHandler) http.Handler {
	r := chi.NewRouter()
	useCommon(r)

	r.Post("/context", h.Publish)
	r.Get("/context/{id}", h.Get)
	r.Post("/subscribe", h.Subscribe)

	// Health & Readiness Routes
	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/readyz", healthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NewAgentRouter serves the receiving agent's webhook endpoint.
func NewAgentRouter(h *handler.WebhookHandler, healthHandler *handler.HealthHandler) http.Handler {
	r := chi.NewRouter()
	useCommon(r)

	r.Post("/webhook", h.Receive)

	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/readyz", healthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func useCommon(r chi.Router) {
	r.Use(customMiddleware.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
}
