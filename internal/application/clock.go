package application

import "time"

// Clock abstraction: the daily quota compares calendar dates, so tests need
// to pin "today".
type Clock interface {
	Now() time.Time
}

// SystemClock is the default, backed by time.Now().
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
