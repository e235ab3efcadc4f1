package capture

import (
	"context"
	"errors"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/kafka"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// Feed is a stream of encoded frames, satisfied by *kafka.Consumer
type Feed interface {
	Messages() <-chan kafka.Message
}

// KafkaSource takes frames published by a remote camera bridge
type KafkaSource struct {
	feed  Feed
	topic string
}

func NewKafkaSource(feed Feed, topic string) *KafkaSource {
	return &KafkaSource{feed: feed, topic: topic}
}

func (s *KafkaSource) Name() string { return "kafka:" + s.topic }

// Capture blocks until the next frame arrives. A closed feed is permanent.
func (s *KafkaSource) Capture(ctx context.Context) (models.Frame, error) {
	select {
	case <-ctx.Done():
		return models.Frame{}, ctx.Err()
	case msg, ok := <-s.feed.Messages():
		if !ok {
			return models.Frame{}, &models.CaptureError{Source: s.Name(), Permanent: true, Err: models.ErrDeviceGone}
		}
		// frames are not replayed, commit as soon as they are taken
		msg.Ack()
		if len(msg.Value) == 0 {
			return models.Frame{}, transient(s.Name(), errors.New("empty frame record"))
		}
		return models.Frame{
			Data:       msg.Value,
			CapturedAt: time.Now(),
			Source:     s.Name(),
		}, nil
	}
}
