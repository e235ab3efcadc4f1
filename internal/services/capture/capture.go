package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// Source yields one encoded frame per call
type Source interface {
	Capture(ctx context.Context) (models.Frame, error)
	Name() string
}

// Retrying retries transient capture errors with capped exponential backoff.
// A permanent error, or an outage longer than maxOutage, is returned as a
// permanent CaptureError. maxOutage of zero retries until ctx is done.
type Retrying struct {
	src       Source
	initial   time.Duration
	maxWait   time.Duration
	maxOutage time.Duration
	logger    *zap.Logger
}

func NewRetrying(src Source, initial, maxWait, maxOutage time.Duration, logger *zap.Logger) *Retrying {
	return &Retrying{
		src:       src,
		initial:   initial,
		maxWait:   maxWait,
		maxOutage: maxOutage,
		logger:    logger.Named("capture"),
	}
}

func (r *Retrying) Name() string { return r.src.Name() }

func (r *Retrying) Capture(ctx context.Context) (models.Frame, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = r.maxWait
	b.MaxElapsedTime = r.maxOutage

	attempt := 0
	frame, err := backoff.RetryNotifyWithData(func() (models.Frame, error) {
		attempt++
		f, err := r.src.Capture(ctx)
		if err == nil {
			return f, nil
		}
		if models.IsPermanentCapture(err) || ctx.Err() != nil {
			return models.Frame{}, backoff.Permanent(err)
		}
		return models.Frame{}, err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		metrics.CaptureErrors.WithLabelValues("transient").Inc()
		r.logger.Warn("capture failed, retrying",
			zap.String("source", r.src.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err),
		)
	})
	if err == nil {
		if attempt > 1 {
			r.logger.Info("capture recovered", zap.String("source", r.src.Name()), zap.Int("attempts", attempt))
		}
		metrics.FramesCaptured.Inc()
		return frame, nil
	}

	if ctx.Err() != nil {
		return models.Frame{}, ctx.Err()
	}
	metrics.CaptureErrors.WithLabelValues("permanent").Inc()
	if models.IsPermanentCapture(err) {
		return models.Frame{}, err
	}
	return models.Frame{}, &models.CaptureError{
		Source:    r.src.Name(),
		Permanent: true,
		Err:       fmt.Errorf("outage exceeded %s: %w", r.maxOutage, err),
	}
}

// transient wraps err as a retryable CaptureError unless it already is one
func transient(source string, err error) error {
	var ce *models.CaptureError
	if errors.As(err, &ce) {
		return err
	}
	return &models.CaptureError{Source: source, Err: err}
}
