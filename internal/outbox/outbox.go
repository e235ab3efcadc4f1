package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/database"
)

const batchSize = 20

type Store interface {
	GetPendingOutbox(ctx context.Context, limit int) ([]database.OutboxMessage, error)
	MarkOutboxProcessed(ctx context.Context, id string) error
}

type Publisher interface {
	SendAlert(alertID string, payload []byte) error
}

// Relay publishes recorded alerts to Kafka. A message is marked processed
// only after the broker accepted it, so delivery is at least once.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	logger    *zap.Logger
}

func NewRelay(store Store, publisher Publisher, interval time.Duration, logger *zap.Logger) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		logger:    logger.Named("outbox"),
	}
}

// Run polls the outbox until ctx is done
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush publishes one batch and returns how many messages went out
func (r *Relay) Flush(ctx context.Context) int {
	messages, err := r.store.GetPendingOutbox(ctx, batchSize)
	if err != nil {
		r.logger.Error("error fetching outbox messages", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if err := r.publisher.SendAlert(msg.AlertID, msg.Payload); err != nil {
			// keep ordering, retry the rest on the next tick
			r.logger.Warn("failed to send alert to Kafka", zap.String("alert_id", msg.AlertID), zap.Error(err))
			return sent
		}
		if err := r.store.MarkOutboxProcessed(ctx, msg.ID); err != nil {
			r.logger.Error("failed to mark outbox message as processed", zap.String("id", msg.ID), zap.Error(err))
			return sent
		}
		sent++
	}
	return sent
}
