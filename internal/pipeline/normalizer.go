package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// Normalizer turns raw classifier output into valid detections.
// A detection is valid when confidence >= threshold and area >= minArea.
type Normalizer struct {
	threshold float64
	minArea   int
	labels    map[string]struct{}
}

// NewNormalizer validates the thresholds once so frames never have to.
// An empty labels list accepts every class.
func NewNormalizer(threshold float64, minArea int, labels []string) (*Normalizer, error) {
	if !(threshold > 0 && threshold <= 1) {
		return nil, &models.ConfigError{Field: "detection.threshold", Reason: fmt.Sprintf("must be in (0,1], got %v", threshold)}
	}
	if minArea <= 0 {
		return nil, &models.ConfigError{Field: "detection.min_area", Reason: fmt.Sprintf("must be > 0, got %d", minArea)}
	}

	n := &Normalizer{threshold: threshold, minArea: minArea}
	if len(labels) > 0 {
		n.labels = make(map[string]struct{}, len(labels))
		for _, l := range labels {
			n.labels[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
		}
	}
	return n, nil
}

// Normalize keeps input order and does not merge overlapping boxes
func (n *Normalizer) Normalize(raw []models.RawDetection, capturedAt time.Time) []models.Detection {
	var out []models.Detection
	for _, r := range raw {
		area := r.Box.Area()
		if r.Confidence < n.threshold || area < n.minArea {
			continue
		}
		if n.labels != nil {
			if _, ok := n.labels[strings.ToLower(r.Label)]; !ok {
				continue
			}
		}
		out = append(out, models.Detection{
			Label:          r.Label,
			Confidence:     r.Confidence,
			Area:           area,
			Box:            r.Box,
			FrameTimestamp: capturedAt,
		})
	}
	return out
}

// Primary picks the detection that represents the frame in an alert:
// highest confidence, earliest on ties.
func Primary(detections []models.Detection) (models.Detection, bool) {
	if len(detections) == 0 {
		return models.Detection{}, false
	}
	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}
