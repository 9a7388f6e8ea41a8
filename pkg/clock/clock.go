package clock

import "time"

// Clock is an injectable time source. Every service that reasons about
// booking windows, slot scarcity or cancellation cutoffs takes one so
// tests can pin the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// New returns a Clock backed by the wall clock, in UTC.
func New() Clock {
	return realClock{}
}

// Fixed is a Clock that always reports the same instant. Advance moves it.
type Fixed struct {
	Time time.Time
}

func (f *Fixed) Now() time.Time { return f.Time }

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.Time = f.Time.Add(d) }

// NewFixed returns a Fixed clock pinned at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{Time: t}
}
