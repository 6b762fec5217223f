package meeting

import (
	"testing"
	"time"
)

func TestWeek(t *testing.T) {
	// Wednesday 15/01/2025 in the office zone.
	anchor := time.Date(2025, time.January, 15, 9, 0, 0, 0, Zone())

	t.Run("weeks start on Monday", func(t *testing.T) {
		monday := MondayOf(anchor)
		if got := FormatDate(monday); got != "13/01/2025" {
			t.Fatalf("expected Monday 13/01/2025, got %q", got)
		}
		if monday.Weekday() != time.Monday {
			t.Fatalf("expected Monday, got %s", monday.Weekday())
		}

		// Sunday belongs to the week that started the previous Monday.
		sunday := time.Date(2025, time.January, 19, 23, 0, 0, 0, Zone())
		if got := FormatDate(MondayOf(sunday)); got != "13/01/2025" {
			t.Fatalf("expected Sunday to map back to 13/01/2025, got %q", got)
		}
	})

	t.Run("week dates span Monday through Sunday", func(t *testing.T) {
		dates := WeekDates(anchor)
		if dates[0] != "13/01/2025" || dates[6] != "19/01/2025" {
			t.Fatalf("unexpected week bounds: %q .. %q", dates[0], dates[6])
		}
		if dates[2] != "15/01/2025" {
			t.Fatalf("expected anchor date in slot 2, got %q", dates[2])
		}
	})

	t.Run("weekday index places dates inside the week", func(t *testing.T) {
		if got := WeekdayIndex("13/01/2025", anchor); got != 0 {
			t.Fatalf("expected index 0 for Monday, got %d", got)
		}
		if got := WeekdayIndex("19/01/2025", anchor); got != 6 {
			t.Fatalf("expected index 6 for Sunday, got %d", got)
		}
		if got := WeekdayIndex("20/01/2025", anchor); got != -1 {
			t.Fatalf("expected -1 for the following Monday, got %d", got)
		}
		if got := WeekdayIndex("12/01/2025", anchor); got != -1 {
			t.Fatalf("expected -1 for the preceding Sunday, got %d", got)
		}
		if got := WeekdayIndex("garbage", anchor); got != -1 {
			t.Fatalf("expected -1 for unparseable date, got %d", got)
		}
	})

	t.Run("membership follows the index", func(t *testing.T) {
		if !InWeek("15/01/2025", anchor) {
			t.Fatal("expected anchor date inside its own week")
		}
		if InWeek("22/01/2025", anchor) {
			t.Fatal("expected next week's date outside the week")
		}
	})
}
