package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/samims/ctxrelay/internal/config"
	"github.com/samims/ctxrelay/internal/dispatcher"
	"github.com/samims/ctxrelay/internal/handler"
	"github.com/samims/ctxrelay/internal/kafka"
	"github.com/samims/ctxrelay/internal/logger"
	"github.com/samims/ctxrelay/internal/metrics"
	"github.com/samims/ctxrelay/internal/registry"
	"github.com/samims/ctxrelay/internal/router"
	"github.com/samims/ctxrelay/internal/service"
	"github.com/samims/ctxrelay/internal/storage"
	"github.com/samims/ctxrelay/pkg/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	l := logger.NewLogger(cfg.App.LogLevel)
	slog.SetDefault(l)

	if err := cfg.Validate(); err != nil {
		l.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	metrics.Init()

	ctx := context.Background()

	// ---- OpenTelemetry Tracing Setup ----
	tracerShutdown, err := tracing.SetupTracing(ctx, cfg.Tracing.ForService(cfg.Tracing.ServiceName), l)
	if err != nil {
		l.Error("Failed to initialize tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			l.Warn("Tracer shutdown failed", slog.Any("error", err))
		}
	}()

	store, err := storage.New(ctx, cfg.Store)
	if err != nil {
		l.Error("Failed to open context store", slog.String("backend", cfg.Store.Backend), slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()
	l.Info("Context store ready", slog.String("backend", cfg.Store.Backend))

	reg := registry.New()

	opts := []dispatcher.Option{
		dispatcher.WithTimeout(cfg.Dispatch.DeliveryTimeout),
		dispatcher.WithConcurrency(cfg.Dispatch.Concurrency),
	}

	var producer kafka.NotificationProducer
	if cfg.Kafka.Enabled() {
		asyncProducer, err := sarama.NewAsyncProducer(cfg.Kafka.Brokers, kafka.NewSaramaConfig("ctxrelay-producer"))
		if err != nil {
			l.Error("Failed to create sarama producer", slog.Any("error", err))
			os.Exit(1)
		}
		producer = kafka.NewProducer(asyncProducer, cfg.Kafka.Topic, l)
		producer.Start(ctx)
		opts = append(opts, dispatcher.WithMirror(producer))
	}

	notifier := dispatcher.New(reg, l, opts...)

	// Initialize layers
	ctxSvc := service.NewContextService(store, reg, notifier, cfg.App.PublicBaseURL, cfg.Dispatch.Mode, l)
	healthSvc := service.NewHealthService(l, service.Dependency{Name: "store", Pinger: store})

	ctxHandler := handler.NewContextHandler(ctxSvc, l)
	healthHandler := handler.NewHealthHandler(healthSvc, l)

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           router.NewRouter(ctxHandler, healthHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		l.Info("Server started",
			slog.String("addr", addr),
			slog.String("public_base_url", cfg.App.PublicBaseURL),
			slog.String("dispatch_mode", cfg.Dispatch.Mode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Failed to start server", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down server...")

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxTimeout); err != nil {
		l.Error("Shutdown failed", "err", err)
	} else {
		l.Info("Server exited cleanly")
	}

	// in-flight fan-outs are bounded by the delivery timeout
	ctxSvc.Close()
	if producer != nil {
		producerCtx, producerCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer producerCancel()
		producer.Close(producerCtx)
	}
}
