package uart

import "time"

// Clock provides the monotonic time source and the suspension point used
// while waiting for a transfer to complete.
type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the Clock backed by package time.
var SystemClock Clock = systemClock{}

// waitUntil polls cond until it reports true or the deadline passes,
// suspending for interval between checks. cond is always checked once
// more after the last suspension.
func waitUntil(clock Clock, deadline time.Time, interval time.Duration, cond func() bool) bool {
	for {
		if cond() {
			return true
		}
		if !clock.Now().Before(deadline) {
			return false
		}
		clock.Sleep(interval)
	}
}
