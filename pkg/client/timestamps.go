package client

import (
	"math"
	"strconv"
	"time"
)

// Unix times at or above this are taken to be in milliseconds.
const unixMilliThreshold = 1e12

// parseTimestamp converts an RFC 3339 string or a decimal Unix time to
// time.Time. Unix times may be fractional seconds, as written by
// time.time(), or integer milliseconds. Returns zero time if parsing fails.
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t
	}
	if n, err := strconv.ParseInt(ts, 10, 64); err == nil {
		if n >= unixMilliThreshold {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}
	}
	secs, frac := math.Modf(f)
	return time.Unix(int64(secs), int64(math.Round(frac*1e9))).UTC()
}
