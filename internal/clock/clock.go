// Package clock abstracts wall-clock timers so debounce windows can be
// driven deterministically in tests.
package clock

import "time"

// Timer is a pending callback scheduled by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

// Clock schedules callbacks after a delay.
//
// Implementations run f on a goroutine of their choosing; callers must not
// assume f runs on the goroutine that scheduled it.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock backed by the time package.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
