package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/samims/ctxrelay/internal/model"
	"github.com/samims/ctxrelay/pkg/tracing"
)

// NotificationProcessor consumes a received notification, typically by fetching its context.
type NotificationProcessor interface {
	Handle(ctx context.Context, n model.Notification) error
}

// WebhookHandler is the agent side of a notification: it acknowledges every
// well-formed webhook and optionally processes it in the background.
type WebhookHandler struct {
	processor NotificationProcessor
	logger    *slog.Logger
	tracer    *tracing.Tracer
	wg        sync.WaitGroup
}

// NewWebhookHandler builds the listener. A nil processor only logs receipts.
func NewWebhookHandler(p NotificationProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: p,
		logger:    logger.With("layer", "handler", "component", "webhookHandler"),
		tracer:    tracing.NewTracer(tracing.GetTracer("webhook-handler")),
	}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := tracing.ExtractHTTP(r.Context(), r.Header)
	ctx, span := h.tracer.StartServerSpan(ctx, "ReceiveWebhook")
	defer span.End()

	var n model.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		h.tracer.RecordError(span, err)
		h.logger.Warn("Invalid webhook payload", slog.Any("error", err))
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	h.logger.Info("Webhook received",
		slog.String("context_id", n.ContextID),
		slog.String("context_url", n.ContextURL),
		slog.Time("timestamp", n.Timestamp),
	)

	if h.processor != nil {
		h.wg.Add(1)
		go func(ctx context.Context) {
			defer h.wg.Done()
			if err := h.processor.Handle(ctx, n); err != nil {
				h.logger.Error("Processing notification failed",
					slog.String("context_id", n.ContextID), slog.Any("error", err))
			}
		}(context.WithoutCancel(ctx))
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received."))
}

// Wait blocks until background processing started by Receive has finished.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}
