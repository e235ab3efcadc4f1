package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// Payload is the rendered alert handed to every channel.
// Channels that need structured data use Event directly.
type Payload struct {
	Title string
	Body  string
	Event *models.AlertEvent
}

// Compose renders the alert text once per event
func Compose(event *models.AlertEvent, loc *time.Location) *Payload {
	if loc == nil {
		loc = time.Local
	}
	det := event.Detection
	at := det.FrameTimestamp
	if at.IsZero() {
		at = event.CreatedAt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Human presence detected at %s.\n", at.In(loc).Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Detections in frame: %d\n", event.DetectionCount)
	fmt.Fprintf(&b, "Best match: confidence %.2f, area %d px, box x=%d y=%d w=%d h=%d\n",
		det.Confidence, det.Area, det.Box.X, det.Box.Y, det.Box.Width, det.Box.Height)
	if event.SnapshotPath != "" {
		fmt.Fprintf(&b, "Snapshot: %s\n", event.SnapshotPath)
	}
	if event.SnapshotURL != "" {
		fmt.Fprintf(&b, "Link: %s\n", event.SnapshotURL)
	}
	fmt.Fprintf(&b, "Alert ID: %s", event.ID)

	return &Payload{
		Title: fmt.Sprintf("Security Alert: %d Human(s) Detected", event.DetectionCount),
		Body:  b.String(),
		Event: event,
	}
}
