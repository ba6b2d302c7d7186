package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/samims/ctxrelay/internal/model"
	"github.com/samims/ctxrelay/pkg/tracing"
)

// NotificationProducer mirrors context notifications to a Kafka topic.
type NotificationProducer interface {
	Start(ctx context.Context)
	Publish(ctx context.Context, n model.Notification) error
	Close(ctx context.Context)
}

type producer struct {
	asyncProducer sarama.AsyncProducer
	topic         string
	log           *slog.Logger
	wg            sync.WaitGroup
	closeOnce     sync.Once
	tracer        *tracing.Tracer
}

// NewSaramaConfig returns the producer settings used for the notification mirror.
func NewSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	// Best-effort mirror: sarama's own retries are the only ones in the system.
	cfg.Producer.Retry.Max = 3
	return cfg
}

// NewProducer wraps an AsyncProducer. It panics on nil dependencies or an empty topic.
func NewProducer(asyncProducer sarama.AsyncProducer, topic string, log *slog.Logger) NotificationProducer {
	if asyncProducer == nil || log == nil {
		panic("NewProducer: nil dependencies provided")
	}
	if topic == "" {
		panic("NewProducer: topic must not be empty")
	}
	return &producer{
		asyncProducer: asyncProducer,
		topic:         topic,
		log:           log.With("layer", "kafka", "component", "notificationProducer"),
		tracer:        tracing.NewTracer(tracing.GetTracer("ctxrelay-kafka")),
	}
}

// Start launches background handlers for the success and error channels.
// They run until the producer is closed.
func (p *producer) Start(_ context.Context) {
	p.log.Info("Starting Kafka producer handlers", slog.String("topic", p.topic))
	p.wg.Add(2)
	go p.handleSuccess()
	go p.handleErrors()
}

func (p *producer) handleSuccess() {
	defer p.wg.Done()
	for msg := range p.asyncProducer.Successes() {
		key, _ := msg.Key.Encode()
		p.log.Debug("Notification mirrored",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("key", string(key)))
	}
}

func (p *producer) handleErrors() {
	defer p.wg.Done()
	for err := range p.asyncProducer.Errors() {
		p.log.Error("Notification mirror failed",
			slog.String("topic", err.Msg.Topic),
			slog.Any("error", err.Err))
	}
}

// Publish queues n on the topic, keyed by context id.
func (p *producer) Publish(ctx context.Context, n model.Notification) error {
	ctx, span := p.tracer.StartProducerSpan(ctx, "KafkaPublish")
	defer span.End()
	p.tracer.AddKafkaAttributes(span, p.topic, "publish")

	data, err := json.Marshal(n)
	if err != nil {
		p.tracer.RecordError(span, err)
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(n.ContextID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
		Headers:   tracing.InjectTraceContext(ctx, nil),
	}

	select {
	case p.asyncProducer.Input() <- msg:
		p.log.Debug("Notification queued to Kafka",
			slog.String("topic", p.topic),
			slog.String("context_id", n.ContextID))
		return nil
	case <-ctx.Done():
		p.log.Warn("Publish cancelled by context", slog.String("context_id", n.ContextID))
		p.tracer.RecordError(span, ctx.Err())
		return ctx.Err()
	}
}

// Close shuts down the producer and waits for the channel handlers until ctx is done.
func (p *producer) Close(ctx context.Context) {
	p.closeOnce.Do(func() {
		p.log.Info("Closing Kafka producer...")
		p.asyncProducer.AsyncClose()

		drained := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
			p.log.Info("Kafka producer closed")
		case <-ctx.Done():
			p.log.Warn("Kafka producer close timed out", slog.Any("error", ctx.Err()))
		}
	})
}
