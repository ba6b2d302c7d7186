// Package dispatcher fans context notifications out to registered webhooks.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	appErr "github.com/samims/ctxrelay/internal/errors"
	"github.com/samims/ctxrelay/internal/metrics"
	"github.com/samims/ctxrelay/internal/model"
	"github.com/samims/ctxrelay/pkg/tracing"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultConcurrency = 16

	// responses are drained up to this size so connections can be reused
	maxDrainBytes = 64 << 10
)

// Notifier delivers a notification for a newly published context.
type Notifier interface {
	Notify(ctx context.Context, contextID, contextURL string) []model.DeliveryResult
}

// SubscriberSource provides the endpoints to notify.
type SubscriberSource interface {
	Snapshot() []string
}

// Mirror receives a copy of every notification, e.g. a Kafka topic.
type Mirror interface {
	Publish(ctx context.Context, n model.Notification) error
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithTimeout bounds every single delivery.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithConcurrency bounds how many deliveries of one Notify run at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithMirror(m Mirror) Option {
	return func(d *Dispatcher) { d.mirror = m }
}

var _ Notifier = (*Dispatcher)(nil)

type Dispatcher struct {
	subscribers SubscriberSource
	client      *http.Client
	timeout     time.Duration
	concurrency int
	mirror      Mirror
	logger      *slog.Logger
	tracer      *tracing.Tracer
	now         func() time.Time
}

func New(subscribers SubscriberSource, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subscribers: subscribers,
		client:      &http.Client{},
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		logger:      logger.With("layer", "dispatcher", "component", "webhookDispatcher"),
		tracer:      tracing.NewTracer(tracing.GetTracer("ctxrelay-dispatcher")),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify builds one notification and delivers it to every subscriber registered at
// call time. Deliveries run concurrently, each bounded by its own timeout, and a
// failing subscriber never affects the others. Notify returns when every delivery
// has finished; results are in snapshot order.
func (d *Dispatcher) Notify(ctx context.Context, contextID, contextURL string) []model.DeliveryResult {
	n := model.Notification{
		ContextID:  contextID,
		ContextURL: contextURL,
		Timestamp:  d.now().UTC(),
	}
	return d.Dispatch(ctx, n)
}

// Dispatch delivers an already built notification.
func (d *Dispatcher) Dispatch(ctx context.Context, n model.Notification) []model.DeliveryResult {
	endpoints := d.subscribers.Snapshot()

	ctx, span := d.tracer.StartClientSpan(ctx, "Dispatch",
		attribute.String(tracing.AttrContextID, n.ContextID),
		attribute.Int(tracing.AttrSubscriberCount, len(endpoints)),
	)
	defer span.End()

	if d.mirror != nil {
		mirrored := make(chan struct{})
		go func() {
			defer close(mirrored)
			d.publishMirror(ctx, n)
		}()
		// the mirror runs beside the webhooks and is bounded like one delivery
		defer func() { <-mirrored }()
	}

	if len(endpoints) == 0 {
		d.logger.Debug("No subscribers to notify", slog.String("context_id", n.ContextID))
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		// A Notification always encodes; report it per endpoint anyway.
		results := make([]model.DeliveryResult, len(endpoints))
		for i, ep := range endpoints {
			results[i] = model.DeliveryResult{Endpoint: ep, Err: appErr.NewDelivery("encode notification: %v", err)}
		}
		d.tracer.RecordError(span, err)
		return results
	}

	results := make([]model.DeliveryResult, len(endpoints))
	var eg errgroup.Group
	// Buffered channel as a semaphore, limiting concurrent deliveries.
	sem := make(chan struct{}, d.concurrency)

	for i, endpoint := range endpoints {
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			results[i] = d.deliver(ctx, endpoint, body)
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	d.logger.Info("Notification fan-out finished",
		slog.String("context_id", n.ContextID),
		slog.Int("subscribers", len(endpoints)),
		slog.Int("failed", failed))
	return results
}

func (d *Dispatcher) publishMirror(parentCtx context.Context, n model.Notification) {
	ctx, cancel := context.WithTimeout(parentCtx, d.timeout)
	defer cancel()

	if err := d.mirror.Publish(ctx, n); err != nil {
		d.logger.Warn("Failed to mirror notification",
			slog.String("context_id", n.ContextID),
			slog.Any("error", err))
	}
}

// deliver performs a single POST. It never retries.
func (d *Dispatcher) deliver(parentCtx context.Context, endpoint string, body []byte) (result model.DeliveryResult) {
	ctx, cancel := context.WithTimeout(parentCtx, d.timeout)
	defer cancel()

	ctx, span := d.tracer.StartClientSpan(ctx, "DeliverWebhook",
		attribute.String(tracing.AttrSubscriber, endpoint))
	defer span.End()

	result.Endpoint = endpoint
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		d.record(result)
		d.tracer.RecordError(span, result.Err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		result.Err = appErr.NewDelivery("build request for %s: %v", endpoint, err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectHTTP(ctx, req.Header)

	resp, err := d.client.Do(req)
	if err != nil {
		result.Err = appErr.NewDelivery("post to %s: %v", endpoint, err)
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	result.StatusCode = resp.StatusCode
	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Err = appErr.NewDelivery("%s responded with status %d", endpoint, resp.StatusCode)
	}
	return result
}

func (d *Dispatcher) record(r model.DeliveryResult) {
	outcome := metrics.OutcomeDelivered
	if !r.OK() {
		outcome = metrics.OutcomeFailed
	}
	metrics.Deliveries.WithLabelValues(outcome).Inc()
	metrics.DeliveryDuration.WithLabelValues(outcome).Observe(r.Duration.Seconds())

	if r.OK() {
		d.logger.Info("Notification delivered",
			slog.String("endpoint", r.Endpoint),
			slog.Int("status", r.StatusCode),
			slog.Duration("duration", r.Duration))
		return
	}
	d.logger.Warn("Notification delivery failed",
		slog.String("endpoint", r.Endpoint),
		slog.Int("status", r.StatusCode),
		slog.Duration("duration", r.Duration),
		slog.Any("error", r.Err))
}
