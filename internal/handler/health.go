package handler

import (
	"log/slog"
	"net/http"

	"github.com/samims/ctxrelay/internal/service"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	svc    service.HealthService
	logger *slog.Logger
}

func NewHealthHandler(svc service.HealthService, l *slog.Logger) *HealthHandler {
	return &HealthHandler{svc: svc, logger: l.With("layer", "handler", "component", "healthHandler")}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.probe(w, h.svc.Liveness(r.Context()), "ok")
}

// Readiness answers 503 naming the dependency that could not be reached.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	h.probe(w, h.svc.Readiness(r.Context()), "ready")
}

func (h *HealthHandler) probe(w http.ResponseWriter, err error, okBody string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err != nil {
		h.logger.Warn("Probe failed", slog.Any("error", err))
		http.Error(w, "unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(okBody))
}
