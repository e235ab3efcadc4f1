package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

func at(hour, minute, second int) time.Time {
	return time.Date(2024, 6, 15, hour, minute, second, 0, time.UTC)
}

func TestWindow_Overnight(t *testing.T) {
	w := NewWindow(models.Clock(18, 0, 0), models.Clock(8, 0, 0), time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"late evening", at(23, 0, 0), true},
		{"small hours", at(2, 0, 0), true},
		{"midday", at(12, 0, 0), false},
		{"exactly start", at(18, 0, 0), true},
		{"exactly end", at(8, 0, 0), false},
		{"second before end", at(7, 59, 59), true},
		{"second before start", at(17, 59, 59), false},
		{"midnight", at(0, 0, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.IsArmed(tt.now))
		})
	}
}

func TestWindow_SameDay(t *testing.T) {
	w := NewWindow(models.Clock(9, 0, 0), models.Clock(17, 30, 0), time.UTC)

	assert.True(t, w.IsArmed(at(9, 0, 0)))
	assert.True(t, w.IsArmed(at(12, 0, 0)))
	assert.True(t, w.IsArmed(at(17, 29, 59)))
	assert.False(t, w.IsArmed(at(17, 30, 0)))
	assert.False(t, w.IsArmed(at(8, 59, 59)))
	assert.False(t, w.IsArmed(at(23, 0, 0)))
}

func TestWindow_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	w := NewWindow(models.Clock(18, 0, 0), models.Clock(8, 0, 0), loc)

	// 16:00 UTC is 19:00 in the window's zone
	assert.True(t, w.IsArmed(at(16, 0, 0)))
	// 06:00 UTC is 09:00 in the window's zone
	assert.False(t, w.IsArmed(at(6, 0, 0)))
}

func TestWindow_BoundaryTakesEffectImmediately(t *testing.T) {
	w := NewWindow(models.Clock(18, 0, 0), models.Clock(8, 0, 0), time.UTC)

	assert.False(t, w.IsArmed(at(17, 59, 59)))
	assert.True(t, w.IsArmed(at(18, 0, 0)))
	assert.True(t, w.IsArmed(at(7, 59, 59)))
	assert.False(t, w.IsArmed(at(8, 0, 0)))
}

func TestWindow_String(t *testing.T) {
	w := NewWindow(models.Clock(18, 0, 0), models.Clock(8, 0, 30), nil)
	assert.Equal(t, "18:00-08:00:30", w.String())
}
