package scheduling

import (
	"fmt"
	"time"

	"github.com/newuzbdev/edunite/internal/models"
)

const (
	// DateLayout is the wire format of calendar dates.
	DateLayout = models.DateLayout
	// MonthLayout is the wire format of calendar months.
	MonthLayout = "2006-01"
)

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay compares calendar dates, ignoring clock and location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate reads a YYYY-MM-DD date as a calendar day in UTC.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}

// ParseMonth reads a YYYY-MM month and returns its first day in UTC.
func ParseMonth(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", raw)
	}
	return t, nil
}

// MonthStart returns day 1 of the anchor's month.
func MonthStart(anchor time.Time) time.Time {
	y, m, _ := anchor.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
}

// AddMonths moves to day 1 of the month n months away from the anchor.
func AddMonths(anchor time.Time, n int) time.Time {
	return MonthStart(anchor).AddDate(0, n, 0)
}

// DatesOfMonth returns every day of the anchor's month, ascending.
func DatesOfMonth(anchor time.Time) []time.Time {
	start := MonthStart(anchor)
	dates := make([]time.Time, 0, 31)
	for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// WeekStart returns the Monday on or before the anchor. Sunday belongs to the
// week that started six days earlier.
func WeekStart(anchor time.Time) time.Time {
	day := Day(anchor)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// DatesOfWeek returns the seven days of the anchor's week, Monday first.
func DatesOfWeek(anchor time.Time) []time.Time {
	start := WeekStart(anchor)
	dates := make([]time.Time, 7)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// DatesBetween returns every day from `from` to `to`, both inclusive.
func DatesBetween(from, to time.Time) []time.Time {
	start, end := Day(from), Day(to)
	if end.Before(start) {
		return nil
	}
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// HourBand returns the inclusive hour range shown by the timetable.
func HourBand(from, to int) []int {
	if from < 0 {
		from = 0
	}
	if to > 23 {
		to = 23
	}
	if to < from {
		return nil
	}
	hours := make([]int, 0, to-from+1)
	for h := from; h <= to; h++ {
		hours = append(hours, h)
	}
	return hours
}

// WeekCells returns the timetable grid of the anchor's week, row by row: every
// date of the first hour, then every date of the next one.
func WeekCells(anchor time.Time, hours []int) []models.CalendarCell {
	dates := DatesOfWeek(anchor)
	cells := make([]models.CalendarCell, 0, len(dates)*len(hours))
	for _, h := range hours {
		for _, d := range dates {
			cells = append(cells, models.CalendarCell{Date: d, Hour: h})
		}
	}
	return cells
}
