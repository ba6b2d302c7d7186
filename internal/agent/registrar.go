// Package agent is the receiving side of the relay: it subscribes itself and
// pulls context whenever a notification arrives.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	appErr "github.com/samims/ctxrelay/internal/errors"
)

// Registrar subscribes the agent's webhook URL with the relay.
type Registrar struct {
	client     *http.Client
	serviceURL string
	webhookURL string
	logger     *slog.Logger
}

func NewRegistrar(serviceURL, webhookURL string, client *http.Client, logger *slog.Logger) *Registrar {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Registrar{
		client:     client,
		serviceURL: strings.TrimRight(serviceURL, "/"),
		webhookURL: webhookURL,
		logger:     logger.With("layer", "agent", "component", "registrar"),
	}
}

// Register posts the webhook URL to {service}/subscribe once. Failures are
// logged and returned; there is no retry.
func (r *Registrar) Register(ctx context.Context) error {
	body, err := json.Marshal(r.webhookURL)
	if err != nil {
		return err
	}

	target := r.serviceURL + "/subscribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("Registration failed", slog.String("service", target), slog.Any("error", err))
		return fmt.Errorf("register webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		err := appErr.NewValidation("relay rejected webhook %s: status %d: %s",
			r.webhookURL, resp.StatusCode, strings.TrimSpace(string(msg)))
		r.logger.Error("Registration rejected", slog.Any("error", err))
		return err
	}

	r.logger.Info("Webhook registered", slog.String("webhook", r.webhookURL), slog.String("service", target))
	return nil
}

// Ping reports whether the relay answers its liveness probe.
func (r *Registrar) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.serviceURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay liveness returned %d", resp.StatusCode)
	}
	return nil
}
