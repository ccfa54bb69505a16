package utils

import "time"

// NowUTC returns the current instant in UTC truncated to milliseconds, the
// precision comments are persisted with.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// FromUnixMilli converts a persisted timestamp back to UTC.
func FromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
