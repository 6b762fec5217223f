package meeting

import (
	"fmt"
	"strings"
	"time"
)

// Zone is the fixed civil timezone all dates and wall-clock times are
// interpreted in. The host clock is never trusted: "now" is always derived
// from UTC plus this offset.
func Zone() *time.Location {
	return time.FixedZone("ICT", 7*60*60)
}

// InZone converts an instant into the civil timezone.
func InZone(t time.Time) time.Time {
	return t.In(Zone())
}

// DateLayout is the civil date format used on the wire and on disk.
const DateLayout = "02/01/2006"

// ClockLayout is the wall-clock format used on the wire and on disk.
const ClockLayout = "15:04"

// ParseDate parses a DD/MM/YYYY civil date into midnight of that day in the
// civil timezone.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	ts, err := time.ParseInLocation(DateLayout, value, Zone())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return ts, nil
}

// FormatDate renders an instant as a DD/MM/YYYY civil date.
func FormatDate(t time.Time) string {
	return InZone(t).Format(DateLayout)
}

// CivilDate returns the civil date string for the supplied instant.
func CivilDate(now time.Time) string {
	return FormatDate(now)
}

// ParseClock parses an HH:MM wall-clock value into minutes since midnight.
func ParseClock(value string) (int, error) {
	value = strings.TrimSpace(value)
	ts, err := time.Parse(ClockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return ts.Hour()*60 + ts.Minute(), nil
}

// FormatClock renders minutes since midnight as an HH:MM wall-clock value.
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// MinutesOfDay returns the wall-clock minute of the supplied instant in the
// civil timezone.
func MinutesOfDay(now time.Time) int {
	local := InZone(now)
	return local.Hour()*60 + local.Minute()
}

// ClockOf renders the wall-clock HH:MM of the supplied instant in the civil
// timezone.
func ClockOf(now time.Time) string {
	return InZone(now).Format(ClockLayout)
}

// DayOfWeek returns the weekday label for a DD/MM/YYYY civil date. Unparseable
// dates yield an empty label.
func DayOfWeek(date string) string {
	ts, err := ParseDate(date)
	if err != nil {
		return ""
	}
	return ts.Weekday().String()
}

// EndOfCivilDay returns the last instant of the civil day containing now.
func EndOfCivilDay(now time.Time) time.Time {
	local := InZone(now)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, Zone())
}
