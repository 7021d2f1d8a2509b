package types

import "time"

// SecPerDay is the length of a distribution day in seconds.
const SecPerDay int64 = 86_400

// NormalizeTime truncates a unix timestamp to midnight UTC of its day.
func NormalizeTime(unix int64) int64 {
	return unix - unix%SecPerDay
}

// Today returns the normalized timestamp of the day containing t.
func Today(t time.Time) int64 {
	return NormalizeTime(t.Unix())
}
