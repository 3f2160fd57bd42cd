package mstime

import (
	"time"

	"github.com/pkg/errors"
)

const (
	nanosecondsInMillisecond = int64(time.Millisecond / time.Nanosecond)
	millisecondsInSecond     = int64(time.Second / time.Millisecond)

	// ISOLayout renders an instant the way ledger timestamps are digested
	// and persisted: UTC with exactly three fractional digits.
	ISOLayout = "2006-01-02T15:04:05.000Z"
)

// Now returns the current local time, truncated to millisecond precision.
func Now() time.Time {
	return ReduceToMillisecondPrecision(time.Now())
}

// UnixMilliToTime converts milliseconds since the epoch to a time.Time.
func UnixMilliToTime(ms int64) time.Time {
	seconds := ms / millisecondsInSecond
	nanoseconds := (ms - seconds*millisecondsInSecond) * nanosecondsInMillisecond
	return time.Unix(seconds, nanoseconds)
}

// TimeToUnixMilli returns the number of milliseconds since the epoch.
func TimeToUnixMilli(t time.Time) int64 {
	return t.UnixNano() / nanosecondsInMillisecond
}

// ReduceToMillisecondPrecision drops everything below the millisecond.
func ReduceToMillisecondPrecision(t time.Time) time.Time {
	nanoseconds := int64(t.Nanosecond())
	millisecondPrecisionNanoSeconds := (nanoseconds / nanosecondsInMillisecond) * nanosecondsInMillisecond
	return time.Unix(t.Unix(), millisecondPrecisionNanoSeconds)
}

// FormatISO renders t in UTC using ISOLayout.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO parses a timestamp rendered by FormatISO. Only the exact
// ISOLayout text is accepted: another rendering of the same instant would
// digest differently from what was stored.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return time.Time{}, errors.WithStack(err)
	}
	if FormatISO(t) != s {
		return time.Time{}, errors.Errorf("timestamp %s is not in the %s layout", s, ISOLayout)
	}
	return ReduceToMillisecondPrecision(t), nil
}
