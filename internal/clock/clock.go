package clock

import "time"

// Precision is the finest timestamp resolution shared by the supported databases.
const Precision = time.Microsecond

// Now reads fn and returns the value in UTC at storage precision.
func Now(fn func() time.Time) time.Time {
	return fn().UTC().Truncate(Precision)
}

// After behaves like Now but never returns a value at or before previous.
// Mutation timestamps rely on it to strictly increase.
func After(fn func() time.Time, previous time.Time) time.Time {
	now := Now(fn)
	if !now.After(previous) {
		return previous.UTC().Truncate(Precision).Add(Precision)
	}
	return now
}
