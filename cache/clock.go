package cache

import "time"

// Clock provides the current time. The bounded cache reads the clock for
// every expiry decision, so tests can substitute a controllable
// implementation instead of sleeping.
type Clock interface {
	Now() time.Time
}

// ClockFunc is an adapter to allow ordinary functions to be used as Clocks.
type ClockFunc func() time.Time

// Now returns the current time.
func (f ClockFunc) Now() time.Time { return f() }

// systemClock reads the wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ScheduleFunc schedules fn to run after d and returns a cancel function.
// It backs the best-effort scheduled expiry of entries; lazy checking on
// read remains the source of truth, so a schedule that fires late (or
// NoSchedule, which never fires) only delays memory reclamation for cold
// keys.
type ScheduleFunc func(d time.Duration, fn func()) (cancel func())

// NoSchedule is a ScheduleFunc that never runs the callback. Use it to
// disable scheduled expiry on runtimes without reliable timers; Cleanup
// covers reclamation there.
func NoSchedule(time.Duration, func()) func() {
	return func() {}
}

// timerSchedule is the default ScheduleFunc, backed by time.AfterFunc.
func timerSchedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
