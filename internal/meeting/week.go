package meeting

import "time"

// MondayOf returns midnight of the Monday starting the week that contains
// the supplied instant, in the civil timezone.
func MondayOf(t time.Time) time.Time {
	local := InZone(t)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone())
	// Monday == 1, Sunday == 0 in Go's weekday numbering.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekDates returns the seven civil dates of the Monday-start week containing
// the anchor instant.
func WeekDates(anchor time.Time) [7]string {
	monday := MondayOf(anchor)
	var dates [7]string
	for i := 0; i < 7; i++ {
		dates[i] = FormatDate(monday.AddDate(0, 0, i))
	}
	return dates
}

// WeekdayIndex returns the position of a civil date inside the Monday-start
// week containing the anchor, or -1 when the date is outside that week or
// unparseable.
func WeekdayIndex(date string, anchor time.Time) int {
	day, err := ParseDate(date)
	if err != nil {
		return -1
	}
	monday := MondayOf(anchor)
	offset := int(day.Sub(monday).Hours() / 24)
	if offset < 0 || offset > 6 {
		return -1
	}
	return offset
}

// InWeek reports whether a civil date falls inside the Monday-start week
// containing the anchor.
func InWeek(date string, anchor time.Time) bool {
	return WeekdayIndex(date, anchor) >= 0
}
