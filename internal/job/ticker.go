package job

import "time"

// Ticker is a cooperative repeating task driving the progress
// animation. It calls Step immediately (zero-delay first tick) and then
// once per Interval, with the frame cycling 1..MaxDots before wrapping
// back to 1. The first time Step returns false the ticker stops
// rescheduling itself; there is no explicit cancel.
type Ticker struct {
	// Interval is the delay between frames.
	Interval time.Duration

	// MaxDots is the frame count before the cycle wraps.
	MaxDots int

	// Step renders one frame and reports whether the ticker should
	// reschedule. It owns the active check.
	Step func(frame int) bool
}

// Run drives the ticker until Step declines. It blocks; callers run it
// in its own goroutine.
func (t *Ticker) Run() {
	if t.Step == nil {
		return
	}
	maxDots := t.MaxDots
	if maxDots < 1 {
		maxDots = 1
	}

	frame := 0
	for {
		frame = frame%maxDots + 1
		if !t.Step(frame) {
			return
		}
		time.Sleep(t.Interval)
	}
}
