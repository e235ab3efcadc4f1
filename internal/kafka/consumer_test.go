package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

// fakeGroup delivers its claim once, then blocks until the context ends
type fakeGroup struct {
	sarama.ConsumerGroup
	session *fakeSession
	claim   *fakeClaim
	once    sync.Once
	closed  bool
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, handler sarama.ConsumerGroupHandler) error {
	var err error
	g.once.Do(func() {
		g.session.ctx = ctx
		err = handler.ConsumeClaim(g.session, g.claim)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (g *fakeGroup) Close() error {
	g.closed = true
	return nil
}

func TestConsumer_DeliversAndAcks(t *testing.T) {
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	claim.messages <- &sarama.ConsumerMessage{Key: []byte("cam"), Value: []byte("jpeg"), Offset: 7, Timestamp: ts}
	close(claim.messages)

	group := &fakeGroup{session: &fakeSession{}, claim: claim}
	c := newConsumer(group, "frames", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartListening(ctx)

	select {
	case msg := <-c.Messages():
		assert.Equal(t, "jpeg", string(msg.Value))
		assert.Equal(t, "cam", string(msg.Key))
		assert.Equal(t, ts, msg.Timestamp)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
	assert.Equal(t, []int64{7}, group.session.markedOffsets())

	cancel()
	select {
	case _, ok := <-c.Messages():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel not closed after cancel")
	}

	require.NoError(t, c.Close())
	assert.True(t, group.closed)
}

func TestMessage_AckWithoutSession(t *testing.T) {
	assert.NotPanics(t, func() { Message{Value: []byte("x")}.Ack() })
}
