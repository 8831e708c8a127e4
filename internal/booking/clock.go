package booking

import "time"

// Clock supplies "now" so the cancellation-window and reminder-window
// checks can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}
