package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samims/ctxrelay/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProducer_PublishEncodesNotification(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, NewSaramaConfig("ctxrelay-test"))
	mp.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var n model.Notification
		if err := json.Unmarshal(val, &n); err != nil {
			return err
		}
		if n.ContextID != "abc123" || n.ContextURL != "http://ctx.local/context/abc123" {
			return fmt.Errorf("unexpected notification %+v", n)
		}
		return nil
	})

	p := NewProducer(mp, "context-notifications", testLogger())
	p.Start(context.Background())

	err := p.Publish(context.Background(), model.Notification{
		ContextID:  "abc123",
		ContextURL: "http://ctx.local/context/abc123",
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)

	p.Close(context.Background())
	p.Close(context.Background())
}

func TestNewProducer_PanicsOnBadInput(t *testing.T) {
	assert.Panics(t, func() { NewProducer(nil, "topic", testLogger()) })
	assert.Panics(t, func() {
		NewProducer(mocks.NewAsyncProducer(t, NewSaramaConfig("x")), "", testLogger())
	})
}

type handlerFunc func(ctx context.Context, n model.Notification) error

func (f handlerFunc) Handle(ctx context.Context, n model.Notification) error { return f(ctx, n) }

type fakeSession struct {
	sarama.ConsumerGroupSession
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return context.Background() }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func TestConsumer_ConsumeClaim(t *testing.T) {
	good, _ := json.Marshal(model.Notification{ContextID: "ok", ContextURL: "http://ctx.local/context/ok"})
	failing, _ := json.Marshal(model.Notification{ContextID: "fail", ContextURL: "http://ctx.local/context/fail"})

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 3)}
	claim.ch <- &sarama.ConsumerMessage{Offset: 1, Value: good}
	claim.ch <- &sarama.ConsumerMessage{Offset: 2, Value: []byte("{not json")}
	claim.ch <- &sarama.ConsumerMessage{Offset: 3, Value: failing}
	close(claim.ch)

	var handled []string
	h := handlerFunc(func(_ context.Context, n model.Notification) error {
		handled = append(handled, n.ContextID)
		if n.ContextID == "fail" {
			return errors.New("fetch failed")
		}
		return nil
	})

	session := &fakeSession{}
	c := NewConsumer("context-notifications", nil, h, testLogger())
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, []string{"ok", "fail"}, handled)
	assert.Equal(t, []int64{1, 2}, session.marked, "failed messages stay unmarked, garbage is skipped")
}
