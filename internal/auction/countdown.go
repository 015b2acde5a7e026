package auction

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ReaperOAK/player-auction/internal/clock"
)

// Countdown owns the single per-process timer handle. Each armed run has a
// generation; a tick callback that fires after its generation was cancelled
// or replaced is discarded by Claim. The next tick is only scheduled when
// the owner calls Next, after the previous tick has been committed.
type Countdown struct {
	mu       sync.Mutex
	clock    clock.Clock
	interval time.Duration
	fire     func(gen uint64)

	timer clockwork.Timer
	gen   uint64
}

// NewCountdown returns an idle countdown that calls fire once per interval.
func NewCountdown(clk clock.Clock, interval time.Duration, fire func(gen uint64)) *Countdown {
	return &Countdown{clock: clk, interval: interval, fire: fire}
}

// Arm cancels any pending tick and starts a new generation when remaining
// is positive. It returns the new generation, or 0 if nothing was armed.
func (c *Countdown) Arm(remaining int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if remaining <= 0 {
		return 0
	}
	c.scheduleLocked(c.gen)
	return c.gen
}

// Next schedules the following tick of gen. It is a no-op for a stale gen.
func (c *Countdown) Next(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.timer != nil {
		return false
	}
	c.scheduleLocked(gen)
	return true
}

// Claim marks the pending tick of gen as delivered. It returns false when
// gen has been cancelled or superseded.
func (c *Countdown) Claim(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.timer == nil {
		return false
	}
	c.timer = nil
	return true
}

// Cancel drops the pending tick, if any. Calling it repeatedly is harmless.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// IsArmed reports whether a tick is pending.
func (c *Countdown) IsArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Countdown) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Countdown) scheduleLocked(gen uint64) {
	c.timer = c.clock.AfterFunc(c.interval, func() { c.fire(gen) })
}
