package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/samims/ctxrelay/internal/agent"
	"github.com/samims/ctxrelay/internal/config"
	"github.com/samims/ctxrelay/internal/handler"
	"github.com/samims/ctxrelay/internal/kafka"
	"github.com/samims/ctxrelay/internal/logger"
	"github.com/samims/ctxrelay/internal/metrics"
	"github.com/samims/ctxrelay/internal/retriever"
	"github.com/samims/ctxrelay/internal/router"
	"github.com/samims/ctxrelay/internal/service"
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

	if err := cfg.ValidateAgent(); err != nil {
		l.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := tracing.SetupTracing(ctx, cfg.Tracing.ForService(cfg.Agent.ServiceName), l)
	if err != nil {
		l.Error("Failed to initialize tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			l.Warn("Tracer shutdown failed", slog.Any("error", err))
		}
	}()

	fetcher := retriever.New(l, retriever.WithTimeout(cfg.Agent.FetchTimeout))
	processor := agent.NewProcessor(fetcher, nil, l)
	registrar := agent.NewRegistrar(cfg.Agent.ServiceURL, cfg.Agent.WebhookURL, nil, l)

	var webhookProcessor handler.NotificationProcessor
	if cfg.Agent.AutoFetch {
		webhookProcessor = processor
	}
	webhookHandler := handler.NewWebhookHandler(webhookProcessor, l)
	healthHandler := handler.NewHealthHandler(service.NewHealthService(l, service.Dependency{Name: "relay", Pinger: registrar}), l)

	addr := ":" + cfg.Agent.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           router.NewAgentRouter(webhookHandler, healthHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("Agent listening", slog.String("addr", addr), slog.String("webhook", cfg.Agent.WebhookURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Failed to start server", "err", err)
			os.Exit(1)
		}
	}()

	// Registration runs once the listener is up; a failure is logged, not retried.
	go func() {
		regCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_ = registrar.Register(regCtx)
	}()

	var wg sync.WaitGroup
	if cfg.Kafka.Enabled() {
		group, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, kafka.NewConsumerConfig("ctxagent-consumer"))
		if err != nil {
			l.Error("Failed to create consumer group", slog.Any("error", err))
			os.Exit(1)
		}
		consumer := kafka.NewConsumer(cfg.Kafka.Topic, group, processor, l)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.Error("Kafka consumer stopped", slog.Any("error", err))
			}
		}()
	}

	<-ctx.Done()
	l.Info("Shutting down agent...")

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxTimeout); err != nil {
		l.Error("Shutdown failed", "err", err)
	}
	webhookHandler.Wait()
	wg.Wait()
	l.Info("Agent exited cleanly")
}
