package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/database"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memStore struct {
	mu        sync.Mutex
	pending   []database.OutboxMessage
	processed []string
	fetchErr  error
}

func (s *memStore) GetPendingOutbox(_ context.Context, limit int) ([]database.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []database.OutboxMessage
	for _, m := range s.pending {
		if len(out) == limit {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *memStore) MarkOutboxProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = append(s.processed, id)
	for i, m := range s.pending {
		if m.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memStore) processedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.processed...)
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []string
	failOn string
}

func (p *fakePublisher) SendAlert(alertID string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if alertID == p.failOn {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, alertID)
	return nil
}

func messages(ids ...string) []database.OutboxMessage {
	out := make([]database.OutboxMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, database.OutboxMessage{ID: "o-" + id, AlertID: id, Payload: []byte(`{}`)})
	}
	return out
}

func TestFlush_PublishesAndMarks(t *testing.T) {
	store := &memStore{pending: messages("a", "b")}
	pub := &fakePublisher{}

	n := NewRelay(store, pub, time.Second, zap.NewNop()).Flush(context.Background())

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, pub.sent)
	assert.Equal(t, []string{"o-a", "o-b"}, store.processedIDs())
}

func TestFlush_StopsAtFirstPublishFailure(t *testing.T) {
	store := &memStore{pending: messages("a", "b", "c")}
	pub := &fakePublisher{failOn: "b"}

	n := NewRelay(store, pub, time.Second, zap.NewNop()).Flush(context.Background())

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"o-a"}, store.processedIDs())
}

func TestFlush_FetchError(t *testing.T) {
	store := &memStore{fetchErr: errors.New("connection refused")}
	n := NewRelay(store, &fakePublisher{}, time.Second, zap.NewNop()).Flush(context.Background())
	assert.Zero(t, n)
}

func TestRun_DrainsUntilCancelled(t *testing.T) {
	store := &memStore{pending: messages("a")}
	pub := &fakePublisher{}
	relay := NewRelay(store, pub, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(store.processedIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
