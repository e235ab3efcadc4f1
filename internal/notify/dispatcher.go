package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// Dispatcher fans one alert out to every enabled channel
type Dispatcher struct {
	channels    []Channel
	sendTimeout time.Duration
	loc         *time.Location
	logger      *zap.Logger
}

func NewDispatcher(channels []Channel, sendTimeout time.Duration, loc *time.Location, logger *zap.Logger) *Dispatcher {
	enabled := lo.Filter(channels, func(ch Channel, _ int) bool {
		return ch != nil && ch.Enabled()
	})
	logger = logger.Named("dispatcher")
	if len(enabled) == 0 {
		logger.Warn("no notification channel enabled, alerts are only recorded")
	}
	return &Dispatcher{
		channels:    enabled,
		sendTimeout: sendTimeout,
		loc:         loc,
		logger:      logger,
	}
}

// Channels returns the names of the enabled channels
func (d *Dispatcher) Channels() []string {
	return lo.Map(d.channels, func(ch Channel, _ int) string { return ch.Name() })
}

type outcome struct {
	channel string
	err     error
	took    time.Duration
}

// Dispatch sends the event to all enabled channels at once and fills
// event.ChannelResults. Channel errors are recorded, never returned.
// Each send is bounded by the send timeout; when ctx ends first, every
// channel still running is recorded as failed with a timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.AlertEvent) {
	start := time.Now()
	event.ChannelResults = make(map[string]models.ChannelResult, len(d.channels))
	if len(d.channels) == 0 {
		return
	}

	// channels get a copy so late writes to the event can't race with them
	snapshot := *event
	snapshot.ChannelResults = nil
	payload := Compose(&snapshot, d.loc)

	results := make(chan outcome, len(d.channels))
	for _, ch := range d.channels {
		go func(ch Channel) {
			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()

			began := time.Now()
			// a panicking transport fails its own channel only
			defer func() {
				if p := recover(); p != nil {
					d.logger.Error("notification channel panicked", zap.String("channel", ch.Name()), zap.Any("panic", p))
					results <- outcome{
						channel: ch.Name(),
						err:     &models.TransportError{Channel: ch.Name(), Err: fmt.Errorf("panic: %v", p)},
						took:    time.Since(began),
					}
				}
			}()

			err := ch.Send(sendCtx, payload)
			results <- outcome{channel: ch.Name(), err: err, took: time.Since(began)}
		}(ch)
	}

	deadline := time.NewTimer(d.sendTimeout)
	defer deadline.Stop()

	pending := len(d.channels)
wait:
	for pending > 0 {
		select {
		case o := <-results:
			pending--
			d.record(event, o)
		case <-deadline.C:
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	for _, name := range d.Channels() {
		if _, ok := event.ChannelResults[name]; !ok {
			d.record(event, outcome{channel: name, err: models.ErrDispatchTimeout, took: time.Since(start)})
		}
	}

	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	d.logger.Info("alert dispatched",
		zap.String("alert_id", event.ID),
		zap.Int("delivered", event.Delivered()),
		zap.Int("channels", len(d.channels)),
		zap.Duration("took", time.Since(start)),
	)
}

func (d *Dispatcher) record(event *models.AlertEvent, o outcome) {
	if o.err == nil {
		event.ChannelResults[o.channel] = models.ChannelResult{Status: models.ChannelSuccess, Duration: o.took}
		metrics.ChannelSends.WithLabelValues(o.channel, string(models.ChannelSuccess)).Inc()
		return
	}

	reason := o.err.Error()
	if isTimeout(o.err) {
		reason = models.ErrDispatchTimeout.Error()
	}
	event.ChannelResults[o.channel] = models.ChannelResult{Status: models.ChannelFailed, Reason: reason, Duration: o.took}
	metrics.ChannelSends.WithLabelValues(o.channel, string(models.ChannelFailed)).Inc()

	d.logger.Error("notification failed",
		zap.String("alert_id", event.ID),
		zap.String("channel", o.channel),
		zap.String("reason", reason),
		zap.Error(o.err),
	)
}

func isTimeout(err error) bool {
	return errors.Is(err, models.ErrDispatchTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
