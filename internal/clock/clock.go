// Package clock abstracts time so that the countdown, the ledger timestamps
// and the health endpoints can be driven by a fake clock in tests.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// Real returns a Clock backed by the system clock.
func Real() Clock { return clockwork.NewRealClock() }

// NewFake returns a manually advanced clock starting at t.
func NewFake(t time.Time) *clockwork.FakeClock { return clockwork.NewFakeClockAt(t) }
