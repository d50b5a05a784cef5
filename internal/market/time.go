package market

import "time"

// TimeLayout is the normalized UTC representation used in every date_time
// column: YYYYMMDD HH:MM:SS.ffffff.
const TimeLayout = "20060102 15:04:05.000000"

// epochMilliThreshold separates second-resolution epochs from millisecond
// ones by magnitude; anything at or above it is treated as milliseconds.
const epochMilliThreshold = 1e11

// FormatTime renders t as a normalized UTC date_time string.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a normalized date_time string back into a UTC time.
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// FromEpoch converts a venue-reported numeric epoch into a UTC time,
// detecting second versus millisecond resolution by magnitude.
func FromEpoch(v float64) time.Time {
	if v >= epochMilliThreshold {
		ms := int64(v)
		return time.UnixMilli(ms).UTC()
	}
	sec := int64(v)
	frac := v - float64(sec)
	return time.Unix(sec, int64(frac*float64(time.Second))).UTC()
}

// AnchorClock resolves a venue-local wall clock (HH:MM:SS without a date) to
// a UTC time. The clock is anchored to today in the venue's zone; if the
// result lands in the future relative to now, one day is subtracted to guard
// against clock skew around midnight.
func AnchorClock(hour, minute, second int, zone *time.Location, now time.Time) time.Time {
	local := now.In(zone)
	anchored := time.Date(local.Year(), local.Month(), local.Day(),
		hour, minute, second, 0, zone)
	if anchored.After(local) {
		anchored = anchored.AddDate(0, 0, -1)
	}
	return anchored.UTC()
}
