package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/samims/ctxrelay/internal/model"
	"github.com/samims/ctxrelay/pkg/tracing"
)

// NotificationHandler processes one notification taken from the topic.
type NotificationHandler interface {
	Handle(ctx context.Context, n model.Notification) error
}

// Consumer reads mirrored notifications using a consumer group.
type Consumer struct {
	topic         string
	handler       NotificationHandler
	consumerGroup sarama.ConsumerGroup
	log           *slog.Logger
}

// NewConsumerConfig returns consumer group settings for the notification topic.
func NewConsumerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	return cfg
}

func NewConsumer(
	topic string,
	consumerGroup sarama.ConsumerGroup,
	handler NotificationHandler,
	log *slog.Logger,
) *Consumer {
	return &Consumer{
		topic:         topic,
		consumerGroup: consumerGroup,
		handler:       handler,
		log:           log.With("layer", "kafka", "component", "notificationConsumer"),
	}
}

// Start runs the consume loop until ctx is cancelled or the group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	defer func() {
		if err := c.consumerGroup.Close(); err != nil {
			c.log.Warn("Failed to close consumer group", slog.Any("error", err))
		}
	}()

	c.log.Info("Kafka consumer started", slog.String("topic", c.topic))

	backoff := 1 * time.Second
	for {
		err := c.consumerGroup.Consume(ctx, []string{c.topic}, c)
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			c.log.Error("Error consuming messages", slog.Any("error", err))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		if ctx.Err() != nil {
			c.log.Info("Context cancelled, stopping consumer")
			return ctx.Err()
		}
	}
}

// Setup logs the partitions assigned to this member.
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	for topic, partitions := range session.Claims() {
		c.log.Info("Partition assignment",
			slog.String("topic", topic),
			slog.Any("partitions", partitions),
		)
	}
	return nil
}

func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	c.log.Info("Kafka session cleanup complete")
	return nil
}

// ConsumeClaim decodes each message and hands it to the handler. Undecodable
// messages are skipped; messages whose handling fails are left unmarked.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		c.log.Debug("Message received",
			slog.String("topic", message.Topic),
			slog.Int("partition", int(message.Partition)),
			slog.Int64("offset", message.Offset),
		)

		var n model.Notification
		if err := json.Unmarshal(message.Value, &n); err != nil {
			c.log.Error("Failed to decode message", slog.Any("error", err))
			session.MarkMessage(message, "")
			continue
		}

		ctx := tracing.ExtractTraceContext(session.Context(), message.Headers)
		if err := c.handler.Handle(ctx, n); err != nil {
			c.log.Error("Notification handling failed",
				slog.String("context_id", n.ContextID),
				slog.Any("error", err))
			continue
		}

		session.MarkMessage(message, "")
	}
	return nil
}
