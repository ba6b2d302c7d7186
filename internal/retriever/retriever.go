// Package retriever pulls published context from the relay by its URL.
package retriever

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	appErr "github.com/samims/ctxrelay/internal/errors"
	"github.com/samims/ctxrelay/internal/metrics"
	"github.com/samims/ctxrelay/internal/model"
	"github.com/samims/ctxrelay/pkg/tracing"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 1 << 10
)

// FetchError describes a failed fetch. Either StatusCode/Body (the relay answered
// with a non-2xx status) or Err (transport failure) is set.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errors.ErrFetch) match every FetchError.
func (e *FetchError) Is(target error) bool { return target == appErr.ErrFetch }

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithTimeout(timeout time.Duration) Option {
	return func(cl *Client) {
		if timeout > 0 {
			cl.http = &http.Client{Timeout: timeout}
		}
	}
}

// Client is safe for concurrent use.
type Client struct {
	http   *http.Client
	logger *slog.Logger
	tracer *tracing.Tracer
}

func New(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger.With("layer", "retriever", "component", "client"),
		tracer: tracing.NewTracer(tracing.GetTracer("ctxrelay-retriever")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads the payload referenced by n.ContextURL.
func (c *Client) Fetch(ctx context.Context, n model.Notification) (string, error) {
	if strings.TrimSpace(n.ContextURL) == "" {
		return "", appErr.NewValidation("notification %q carries no context URL", n.ContextID)
	}
	return c.get(ctx, n.ContextURL, n.ContextID)
}

// FetchByID composes {baseURL}/context/{id} and fetches it.
func (c *Client) FetchByID(ctx context.Context, baseURL, id string) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		return "", appErr.NewValidation("base URL is required")
	}
	if strings.TrimSpace(id) == "" {
		return "", appErr.NewValidation("context id is required")
	}
	target := strings.TrimRight(baseURL, "/") + "/context/" + url.PathEscape(id)
	return c.get(ctx, target, id)
}

func (c *Client) get(ctx context.Context, target, id string) (string, error) {
	ctx, span := c.tracer.StartClientSpan(ctx, "FetchContext",
		attribute.String(tracing.AttrContextID, id),
		attribute.String("http.url", target),
	)
	defer span.End()

	payload, err := c.do(ctx, target)
	if err != nil {
		metrics.Fetches.WithLabelValues(metrics.OutcomeError).Inc()
		c.tracer.RecordError(span, err)
		c.logger.Warn("Fetch failed", slog.String("url", target), slog.Any("error", err))
		return "", err
	}

	metrics.Fetches.WithLabelValues(metrics.OutcomeOK).Inc()
	c.logger.Debug("Fetched context", slog.String("url", target), slog.Int("size", len(payload)))
	return payload, nil
}

func (c *Client) do(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &FetchError{URL: target, Err: err}
	}
	tracing.InjectHTTP(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &FetchError{URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	return string(body), nil
}
