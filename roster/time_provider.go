package roster

import "time"

// TimeProvider abstracts time for deterministic tests.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the wall clock.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

var defaultTimeProvider TimeProvider = DefaultTimeProvider{}
