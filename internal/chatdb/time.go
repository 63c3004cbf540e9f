package chatdb

import "time"

// appleEpoch is the reference instant of every message.date value.
var appleEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Time converts a store-native timestamp (nanoseconds since appleEpoch).
func Time(ns int64) time.Time {
	return appleEpoch.Add(time.Duration(ns))
}

// Nanos is the inverse of Time.
func Nanos(t time.Time) int64 {
	return t.Sub(appleEpoch).Nanoseconds()
}
