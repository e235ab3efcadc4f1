package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/pipeline"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/services/capture"
)

type Classifier interface {
	Classify(ctx context.Context, frame models.Frame) ([]models.RawDetection, error)
}

type Persister interface {
	Persist(data []byte, ts time.Time) (string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.AlertEvent)
}

// Annotator draws the detections onto the frame before it is stored
type Annotator interface {
	Annotate(frame []byte, detections []models.Detection) ([]byte, error)
}

// Mirror copies stored evidence somewhere reachable and returns a link to it
type Mirror interface {
	Mirror(ctx context.Context, localPath string) (string, error)
}

type Recorder interface {
	RecordAlert(ctx context.Context, node string, event *models.AlertEvent) error
}

type HeartbeatSender interface {
	SendHeartbeat(msg models.Heartbeat) error
}

// Deps are the collaborators of a Runner. Annotator, Mirror, Recorder and
// Heartbeats are optional.
type Deps struct {
	Source     capture.Source
	Classifier Classifier
	Normalizer *pipeline.Normalizer
	Window     *pipeline.Window
	Cooldown   *pipeline.Cooldown
	Persister  Persister
	Dispatcher Dispatcher

	Annotator  Annotator
	Mirror     Mirror
	Recorder   Recorder
	Heartbeats HeartbeatSender
}

type Options struct {
	Node              string
	Interval          time.Duration
	QueueSize         int
	ShutdownGrace     time.Duration
	MirrorTimeout     time.Duration
	RecordTimeout     time.Duration
	HeartbeatInterval time.Duration
}

// Runner owns the acquisition loop and the dispatch worker
type Runner struct {
	Deps
	opts   Options
	clock  func() time.Time
	queue  chan *models.AlertEvent
	logger *zap.Logger

	framesProcessed atomic.Int64
	alertsSent      atomic.Int64
}

func New(deps Deps, opts Options, logger *zap.Logger) *Runner {
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 10 * time.Second
	}
	return &Runner{
		Deps:   deps,
		opts:   opts,
		clock:  time.Now,
		queue:  make(chan *models.AlertEvent, opts.QueueSize),
		logger: logger.Named("runner"),
	}
}

// Run processes frames until ctx is done or capture fails permanently.
// Queued alerts are still dispatched after the loop ends; sends that are
// not finished within the shutdown grace are recorded as timed out.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner started",
		zap.String("source", r.Source.Name()),
		zap.String("window", r.Window.String()),
		zap.Duration("cooldown", r.Cooldown.Period()),
	)

	// dispatch outlives ctx by at most the shutdown grace
	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDispatch()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		r.dispatchLoop(dispatchCtx)
	}()

	var wg sync.WaitGroup
	if r.Heartbeats != nil && r.opts.HeartbeatInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.heartbeatLoop(ctx)
		}()
	}

	err := r.acquire(ctx)

	close(r.queue)
	grace := time.AfterFunc(r.opts.ShutdownGrace, cancelDispatch)
	<-workerDone
	grace.Stop()
	wg.Wait()

	r.logger.Info("runner stopped",
		zap.Int64("frames_processed", r.framesProcessed.Load()),
		zap.Int64("alerts_sent", r.alertsSent.Load()),
	)
	return err
}

func (r *Runner) acquire(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := r.Source.Capture(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case models.IsPermanentCapture(err):
			r.logger.Error("capture failed permanently", zap.String("source", r.Source.Name()), zap.Error(err))
			return err
		case err != nil:
			r.logger.Warn("capture failed", zap.String("source", r.Source.Name()), zap.Error(err))
		default:
			r.processFrame(ctx, frame)
		}

		if r.opts.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.opts.Interval):
			}
		}
	}
}

// processFrame runs one frame through normalize, gate, cooldown and persist,
// then queues the alert without waiting for delivery
func (r *Runner) processFrame(ctx context.Context, frame models.Frame) {
	r.framesProcessed.Add(1)

	raw, err := r.Classifier.Classify(ctx, frame)
	if err != nil {
		metrics.ClassifierErrors.Inc()
		r.logger.Warn("classifier failed, skipping frame", zap.String("source", frame.Source), zap.Error(err))
		return
	}

	detections := r.Normalizer.Normalize(raw, frame.CapturedAt)
	metrics.Detections.WithLabelValues("valid").Add(float64(len(detections)))
	metrics.Detections.WithLabelValues("dropped").Add(float64(len(raw) - len(detections)))
	if len(detections) == 0 {
		return
	}

	now := r.clock()
	armed := r.Window.IsArmed(now)
	r.setArmed(armed)
	if !armed {
		metrics.GateDecisions.WithLabelValues("disarmed").Inc()
		r.logger.Debug("detection outside monitoring window", zap.Int("detections", len(detections)))
		return
	}
	metrics.GateDecisions.WithLabelValues("armed").Inc()

	if !r.Cooldown.TryAuthorize(now) {
		metrics.Alerts.WithLabelValues("suppressed").Inc()
		r.logger.Debug("alert suppressed by cooldown", zap.Int("detections", len(detections)))
		return
	}

	primary, _ := pipeline.Primary(detections)

	data := frame.Data
	if r.Annotator != nil {
		annotated, err := r.Annotator.Annotate(frame.Data, detections)
		if err != nil {
			r.logger.Warn("annotation failed, storing raw frame", zap.Error(err))
		} else {
			data = annotated
		}
	}

	path, err := r.Persister.Persist(data, now)
	if err != nil {
		metrics.Alerts.WithLabelValues("storage_failed").Inc()
		r.logger.Error("evidence not stored, alert aborted", zap.Error(err))
		return
	}

	event := models.NewAlertEvent(primary, len(detections), path, now)
	metrics.Alerts.WithLabelValues("authorized").Inc()
	r.alertsSent.Add(1)

	select {
	case r.queue <- event:
	default:
		metrics.Alerts.WithLabelValues("dropped").Inc()
		r.logger.Warn("dispatch queue full, alert dropped",
			zap.String("alert_id", event.ID),
			zap.String("snapshot", path),
		)
	}
}

func (r *Runner) dispatchLoop(ctx context.Context) {
	for event := range r.queue {
		if r.Mirror != nil {
			r.mirror(ctx, event)
		}

		r.Dispatcher.Dispatch(ctx, event)

		fields := []zap.Field{
			zap.String("alert_id", event.ID),
			zap.Float64("confidence", event.Detection.Confidence),
			zap.Int("area", event.Detection.Area),
			zap.Int("detections", event.DetectionCount),
			zap.String("snapshot", event.SnapshotPath),
			zap.Int("delivered", event.Delivered()),
		}
		for name, res := range event.ChannelResults {
			fields = append(fields, zap.String("channel_"+name, string(res.Status)))
		}
		r.logger.Info("alert completed", fields...)

		if r.Recorder != nil {
			r.record(ctx, event)
		}
	}
}

// record writes the finished alert even after the shutdown grace cancelled dispatch
func (r *Runner) record(ctx context.Context, event *models.AlertEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.RecordTimeout)
	defer cancel()

	if err := r.Recorder.RecordAlert(ctx, r.opts.Node, event); err != nil {
		r.logger.Error("alert history not recorded", zap.String("alert_id", event.ID), zap.Error(err))
	}
}

func (r *Runner) mirror(ctx context.Context, event *models.AlertEvent) {
	if r.opts.MirrorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.MirrorTimeout)
		defer cancel()
	}

	url, err := r.Mirror.Mirror(ctx, event.SnapshotPath)
	if err != nil {
		r.logger.Warn("evidence mirror failed", zap.String("alert_id", event.ID), zap.Error(err))
		return
	}
	event.SnapshotURL = url
}

func (r *Runner) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Heartbeats.SendHeartbeat(r.Status()); err != nil {
				r.logger.Warn("error sending heartbeat", zap.Error(err))
			}
		}
	}
}

// Status is a point-in-time view of the pipeline
func (r *Runner) Status() models.Heartbeat {
	now := r.clock()
	armed := r.Window.IsArmed(now)
	r.setArmed(armed)

	hb := models.Heartbeat{
		Node:            r.opts.Node,
		Armed:           armed,
		FramesProcessed: r.framesProcessed.Load(),
		AlertsSent:      r.alertsSent.Load(),
		TimeStamp:       now.UTC(),
	}
	if last, ok := r.Cooldown.LastAlertAt(); ok {
		hb.LastAlertAt = &last
	}
	return hb
}

func (r *Runner) setArmed(armed bool) {
	if armed {
		metrics.Armed.Set(1)
	} else {
		metrics.Armed.Set(0)
	}
}
