package pipeline

import (
	"sync/atomic"
	"time"
)

// Cooldown enforces a minimum spacing between alerts.
// The zero value is not usable, see NewCooldown.
type Cooldown struct {
	period time.Duration
	last   atomic.Pointer[time.Time]
}

func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{period: period}
}

// TryAuthorize claims the next alert slot. It returns true and records now
// as the last alert time only if no alert was recorded yet or at least
// period has passed since the last one. Concurrent callers race through a
// compare-and-swap, so a single one wins per window.
func (c *Cooldown) TryAuthorize(now time.Time) bool {
	for {
		prev := c.last.Load()
		if prev != nil && now.Sub(*prev) < c.period {
			return false
		}
		next := now
		if c.last.CompareAndSwap(prev, &next) {
			return true
		}
	}
}

// LastAlertAt returns the last authorized time, ok is false before the first alert
func (c *Cooldown) LastAlertAt() (time.Time, bool) {
	p := c.last.Load()
	if p == nil {
		return time.Time{}, false
	}
	return *p, true
}

func (c *Cooldown) Period() time.Duration { return c.period }
