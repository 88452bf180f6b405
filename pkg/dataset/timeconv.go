package dataset

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	minSeconds = decimal.New(math.MinInt64, -9)
	maxSeconds = decimal.New(math.MaxInt64, -9)
)

// SecondsInRange reports whether seconds fits a nanosecond cursor.
func SecondsInRange(seconds decimal.Decimal) bool {
	return seconds.GreaterThanOrEqual(minSeconds) && seconds.LessThanOrEqual(maxSeconds)
}

// SecondsToTime converts fractional epoch seconds into a UTC time, exact to
// the nanosecond. seconds must satisfy SecondsInRange.
func SecondsToTime(seconds decimal.Decimal) time.Time {
	return time.Unix(0, seconds.Shift(9).IntPart()).UTC()
}

// TimeToSeconds converts t into fractional epoch seconds.
func TimeToSeconds(t time.Time) decimal.Decimal {
	return decimal.New(t.UnixNano(), -9)
}

// TimeToCursor converts t into the source's nanosecond cursor unit.
func TimeToCursor(t time.Time) int64 {
	return t.UnixNano()
}

// CursorToTime converts a nanosecond cursor into a UTC time.
func CursorToTime(cursor int64) time.Time {
	return time.Unix(0, cursor).UTC()
}
