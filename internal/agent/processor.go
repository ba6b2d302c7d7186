package agent

import (
	"context"
	"log/slog"

	"github.com/samims/ctxrelay/internal/model"
)

// Fetcher pulls the payload a notification points at.
type Fetcher interface {
	Fetch(ctx context.Context, n model.Notification) (string, error)
}

// Consumer receives every fetched payload.
type Consumer func(ctx context.Context, n model.Notification, payload string) error

// Processor fetches the context of each notification and hands it to a Consumer.
// It serves both the webhook listener and the Kafka consumer group.
type Processor struct {
	fetcher Fetcher
	consume Consumer
	logger  *slog.Logger
}

// NewProcessor builds a Processor. A nil consume logs what was fetched.
func NewProcessor(f Fetcher, consume Consumer, logger *slog.Logger) *Processor {
	l := logger.With("layer", "agent", "component", "processor")
	if consume == nil {
		consume = LogConsumer(l)
	}
	return &Processor{fetcher: f, consume: consume, logger: l}
}

func (p *Processor) Handle(ctx context.Context, n model.Notification) error {
	payload, err := p.fetcher.Fetch(ctx, n)
	if err != nil {
		p.logger.Error("Fetching context failed",
			slog.String("context_id", n.ContextID),
			slog.String("context_url", n.ContextURL),
			slog.Any("error", err),
		)
		return err
	}
	return p.consume(ctx, n, payload)
}

// LogConsumer logs the id and size of each payload.
func LogConsumer(logger *slog.Logger) Consumer {
	return func(_ context.Context, n model.Notification, payload string) error {
		logger.Info("Context fetched", slog.String("context_id", n.ContextID), slog.Int("size", len(payload)))
		return nil
	}
}
