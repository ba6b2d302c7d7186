package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samims/ctxrelay/internal/config"
	"github.com/samims/ctxrelay/internal/dispatcher"
	appErr "github.com/samims/ctxrelay/internal/errors"
	"github.com/samims/ctxrelay/internal/metrics"
	"github.com/samims/ctxrelay/internal/storage"
	"github.com/samims/ctxrelay/pkg/tracing"
)

// SubscriberRegistry is the part of the registry the service writes to.
type SubscriberRegistry interface {
	Register(endpoint string) error
	Len() int
}

type ContextService interface {
	// Publish stores payload, notifies subscribers and returns the context URL.
	Publish(ctx context.Context, payload string) (string, error)
	Retrieve(ctx context.Context, id string) (string, error)
	RegisterSubscriber(ctx context.Context, endpoint string) error
	// Close waits for background fan-outs started by Publish. Publishes that
	// arrive afterwards notify before returning.
	Close()
}

type contextService struct {
	store    storage.ContextStore
	registry SubscriberRegistry
	notifier dispatcher.Notifier
	baseURL  string
	syncFan  bool
	logger   *slog.Logger
	tracer   *tracing.Tracer
	inFlight sync.WaitGroup

	// guards closed so no fan-out is added to inFlight once Close waits
	mu     sync.Mutex
	closed bool
}

// NewContextService wires the orchestrator. mode is config.DispatchSync or
// config.DispatchAsync; anything else is treated as async.
func NewContextService(
	store storage.ContextStore,
	registry SubscriberRegistry,
	notifier dispatcher.Notifier,
	publicBaseURL string,
	mode string,
	logger *slog.Logger,
) ContextService {
	l := logger.With("layer", "service", "component", "contextService")
	return &contextService{
		store:    store,
		registry: registry,
		notifier: notifier,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		syncFan:  mode == config.DispatchSync,
		logger:   l,
		tracer:   tracing.NewTracer(tracing.GetTracer("ctxrelay-service")),
	}
}

// ContextURL derives the retrieval URL of id from the public base address.
func ContextURL(publicBaseURL, id string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/context/" + url.PathEscape(id)
}

func (s *contextService) Publish(ctx context.Context, payload string) (string, error) {
	ctx, span := s.tracer.StartServerSpan(ctx, "Publish")
	defer span.End()

	if strings.TrimSpace(payload) == "" {
		s.logger.Warn("Publish rejected: empty payload")
		err := appErr.NewValidation("payload must not be empty")
		s.tracer.RecordError(span, err)
		return "", err
	}

	id, err := s.store.Put(ctx, payload)
	if err != nil {
		if !appErr.IsStorage(err) {
			err = appErr.NewStorage("failed to store context: %v", err)
		}
		s.logger.Error("Failed to store context", slog.Any("error", err))
		s.tracer.RecordError(span, err)
		return "", err
	}
	metrics.ContextsPublished.Inc()

	contextURL := ContextURL(s.baseURL, id)
	span.SetAttributes(attribute.String(tracing.AttrContextID, id))
	s.logger.Info("Context published", slog.String("id", id), slog.Int("size", len(payload)))

	// Deliveries are detached from the publisher: cancelling the request does not
	// abort in-flight webhooks.
	fanCtx := context.WithoutCancel(ctx)
	if s.syncFan {
		s.notifier.Notify(fanCtx, id, contextURL)
		return contextURL, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("Service closing, notifying inline", slog.String("id", id))
		s.notifier.Notify(fanCtx, id, contextURL)
		return contextURL, nil
	}
	s.inFlight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inFlight.Done()
		s.notifier.Notify(fanCtx, id, contextURL)
	}()
	return contextURL, nil
}

func (s *contextService) Retrieve(ctx context.Context, id string) (string, error) {
	ctx, span := s.tracer.StartServerSpan(ctx, "Retrieve", attribute.String(tracing.AttrContextID, id))
	defer span.End()

	payload, err := s.store.Get(ctx, id)
	if err != nil {
		if appErr.IsNotFound(err) {
			s.logger.Debug("Context not found", slog.String("id", id))
			return "", err
		}
		s.logger.Error("Failed to retrieve context", slog.String("id", id), slog.Any("error", err))
		s.tracer.RecordError(span, err)
		if !appErr.IsStorage(err) {
			err = appErr.NewStorage("failed to retrieve context %s: %v", id, err)
		}
		return "", err
	}
	return payload, nil
}

func (s *contextService) RegisterSubscriber(_ context.Context, endpoint string) error {
	if err := s.registry.Register(endpoint); err != nil {
		s.logger.Warn("Subscriber rejected", slog.String("endpoint", endpoint), slog.Any("error", err))
		return err
	}
	metrics.Subscribers.Set(float64(s.registry.Len()))
	s.logger.Info("Subscriber registered", slog.String("endpoint", strings.TrimSpace(endpoint)))
	return nil
}

func (s *contextService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.inFlight.Wait()
}
