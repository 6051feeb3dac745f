package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

var globalClock clock.Clock = clock.New()

func Get() clock.Clock {
	return globalClock
}

func Set(clk clock.Clock) {
	globalClock = clk
}

type Timer = clock.Timer
type Ticker = clock.Ticker
type Mock = clock.Mock

func New() clock.Clock {
	return clock.New()
}

func NewMock() *Mock {
	return clock.NewMock()
}

// Now returns the current time of the global clock.
func Now() time.Time {
	return globalClock.Now()
}

// Sleep blocks on the global clock, which makes it controllable
// from tests through a Mock.
func Sleep(d time.Duration) {
	globalClock.Sleep(d)
}

func NewTicker(d time.Duration) *Ticker {
	return globalClock.Ticker(d)
}
