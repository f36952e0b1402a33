package utils

import (
	"fmt"
	"time"
)

// Now returns current time (useful for mocking in tests)
var Now = time.Now

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", d/time.Minute, (d%time.Minute)/time.Second)
	}
	return fmt.Sprintf("%dh%dm", d/time.Hour, (d%time.Hour)/time.Minute)
}

// FromUnixMilli converts a client millisecond timestamp to time. Zero,
// negative, NaN and far-future stamps fall back to now. Fractions of a
// millisecond are dropped.
func FromUnixMilli(ms float64, now time.Time) time.Time {
	if !(ms > 0) || ms > float64(now.Add(24*time.Hour).UnixMilli()) {
		return now
	}
	return time.UnixMilli(int64(ms))
}

// IsExpired checks if a timestamp is older than ttl
func IsExpired(timestamp time.Time, ttl time.Duration) bool {
	return Now().Sub(timestamp) > ttl
}
