package models

import (
	"time"

	"github.com/google/uuid"
)

// BBox is a bounding box in pixel coordinates
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the pixel area of the box, zero for degenerate boxes
func (b BBox) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Frame is one encoded image pulled from the capture source.
// CapturedAt carries both the wall clock and the monotonic reading.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
	Source     string
}

// RawDetection is a classifier hit before any filtering
type RawDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        BBox    `json:"box"`
}

// Detection is a classifier hit that passed the confidence and area thresholds
type Detection struct {
	Label          string    `json:"label,omitempty"`
	Confidence     float64   `json:"confidence"`
	Area           int       `json:"area"`
	Box            BBox      `json:"bbox"`
	FrameTimestamp time.Time `json:"frame_timestamp"`
}

type ChannelStatus string

const (
	ChannelSuccess ChannelStatus = "success"
	ChannelFailed  ChannelStatus = "failed"
)

// ChannelResult is the delivery outcome of one channel for one alert
type ChannelResult struct {
	Status   ChannelStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

// AlertEvent is created once per authorized detection.
// ChannelResults is filled by the dispatcher after fan-out.
type AlertEvent struct {
	ID             string                   `json:"id"`
	Detection      Detection                `json:"detection"`
	DetectionCount int                      `json:"detection_count"`
	SnapshotPath   string                   `json:"snapshot_path"`
	SnapshotURL    string                   `json:"snapshot_url,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	ChannelResults map[string]ChannelResult `json:"channel_results"`
}

// NewAlertEvent builds the event for an authorized detection
func NewAlertEvent(primary Detection, count int, snapshotPath string, createdAt time.Time) *AlertEvent {
	return &AlertEvent{
		ID:             uuid.New().String(),
		Detection:      primary,
		DetectionCount: count,
		SnapshotPath:   snapshotPath,
		CreatedAt:      createdAt,
	}
}

// Delivered counts channels that reported success
func (e *AlertEvent) Delivered() int {
	n := 0
	for _, r := range e.ChannelResults {
		if r.Status == ChannelSuccess {
			n++
		}
	}
	return n
}

// Heartbeat is the periodic liveness record published by the pipeline
type Heartbeat struct {
	Node            string     `json:"node"`
	Armed           bool       `json:"armed"`
	FramesProcessed int64      `json:"frames_processed"`
	AlertsSent      int64      `json:"alerts_sent"`
	LastAlertAt     *time.Time `json:"last_alert_at,omitempty"`
	TimeStamp       time.Time  `json:"timestamp"`
}
