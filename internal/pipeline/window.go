package pipeline

import (
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// Window is the daily monitoring interval. It holds no state and is
// evaluated against the clock on every call.
type Window struct {
	start models.TimeOfDay
	end   models.TimeOfDay
	loc   *time.Location
}

func NewWindow(start, end models.TimeOfDay, loc *time.Location) *Window {
	if loc == nil {
		loc = time.Local
	}
	return &Window{start: start, end: end, loc: loc}
}

// IsArmed reports whether now falls in [start, end).
// When start > end the interval wraps past midnight.
func (w *Window) IsArmed(now time.Time) bool {
	t := models.TimeOfDayOf(now.In(w.loc))
	if w.start <= w.end {
		return t >= w.start && t < w.end
	}
	return t >= w.start || t < w.end
}

func (w *Window) String() string {
	return w.start.String() + "-" + w.end.String()
}
