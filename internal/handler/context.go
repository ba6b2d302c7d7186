package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/samims/ctxrelay/internal/errors"
	"github.com/samims/ctxrelay/internal/model"
	"github.com/samims/ctxrelay/internal/service"
	"github.com/samims/ctxrelay/pkg/tracing"
)

type ContextHandler struct {
	svc    service.ContextService
	logger *slog.Logger
	tracer *tracing.Tracer
}

func NewContextHandler(s service.ContextService, logger *slog.Logger) *ContextHandler {
	return &ContextHandler{
		svc:    s,
		logger: logger.With("layer", "handler", "component", "contextHandler"),
		tracer: tracing.NewTracer(tracing.GetTracer("context-handler")),
	}
}

// Publish stores the posted payload and answers with its context URL.
func (h *ContextHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "Publish")
	defer span.End()

	var req model.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.tracer.RecordError(span, err)
		h.logger.Warn("Invalid request body for Publish", slog.Any("error", err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Payload == nil {
		h.logger.Warn("Publish without payload field")
		http.Error(w, "payload is required", http.StatusBadRequest)
		return
	}

	contextURL, err := h.svc.Publish(ctx, *req.Payload)
	if err != nil {
		switch {
		case errors.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.IsStorageFull(err):
			h.tracer.RecordError(span, err)
			h.logger.Error("Publish failed: store full", slog.Any("error", err))
			http.Error(w, "context store is full", http.StatusInsufficientStorage)
		default:
			h.tracer.RecordError(span, err)
			h.logger.Error("Publish failed", slog.Any("error", err))
			http.Error(w, "failed to store context", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(contextURL))
}

// Get returns the stored payload verbatim.
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "Get")
	defer span.End()

	id := chi.URLParam(r, "id")
	payload, err := h.svc.Retrieve(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			h.logger.Warn("Context not found", "id", id)
			http.Error(w, "not found", http.StatusNotFound)
		} else {
			h.tracer.RecordError(span, err)
			h.logger.Error("Get failed", "id", id, "error", err)
			http.Error(w, "failed to retrieve context", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(payload))
}

// Subscribe registers the webhook URL carried as a JSON string body.
func (h *ContextHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "Subscribe")
	defer span.End()

	var endpoint string
	if err := json.NewDecoder(r.Body).Decode(&endpoint); err != nil {
		h.tracer.RecordError(span, err)
		h.logger.Warn("Invalid request body for Subscribe", slog.Any("error", err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.RegisterSubscriber(ctx, endpoint); err != nil {
		if errors.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			h.tracer.RecordError(span, err)
			http.Error(w, "failed to register subscriber", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}
