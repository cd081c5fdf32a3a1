package models

import "time"

// CalendarCell is one (date, hour) coordinate of the weekly timetable.
type CalendarCell struct {
	Date time.Time `json:"date"`
	Hour int       `json:"hour"`
}

// TimetableCell pairs a grid coordinate with the lesson occupying it and the
// room that lesson uses.
type TimetableCell struct {
	CalendarCell
	Lesson *Lesson `json:"lesson,omitempty"`
	Room   *Room   `json:"room,omitempty"`
}

// TimetableWeek is the weekly grid for one filter combination.
type TimetableWeek struct {
	WeekStart time.Time       `json:"week_start"`
	Dates     []time.Time     `json:"dates"`
	Hours     []int           `json:"hours"`
	Filter    ScheduleFilter  `json:"filter"`
	Cells     []TimetableCell `json:"cells"`
	Anomalies int             `json:"anomalies"`
	Cached    bool            `json:"-"`
}

// RosterRow is a student line of the monthly attendance roster.
type RosterRow struct {
	Student  Student            `json:"student"`
	Statuses []AttendanceStatus `json:"statuses"`
	Stats    AttendanceStats    `json:"stats"`
}

// GroupRoster is the monthly attendance sheet of a group.
type GroupRoster struct {
	Group      Group       `json:"group"`
	Month      time.Time   `json:"month"`
	Weekdays   []int       `json:"weekdays"`
	ClassDates []time.Time `json:"class_dates"`
	Rows       []RosterRow `json:"rows"`
}

// CalendarMonth is the month grid around an anchor date.
type CalendarMonth struct {
	Month    time.Time   `json:"month"`
	Dates    []time.Time `json:"dates"`
	Previous time.Time   `json:"previous"`
	Next     time.Time   `json:"next"`
}

// CalendarWeek is the Monday-first week around an anchor date.
type CalendarWeek struct {
	WeekStart time.Time   `json:"week_start"`
	Dates     []time.Time `json:"dates"`
	Hours     []int       `json:"hours"`
	Previous  time.Time   `json:"previous"`
	Next      time.Time   `json:"next"`
}

// GroupClassDates lists the dates of a month on which a group meets.
type GroupClassDates struct {
	GroupID    string      `json:"group_id"`
	Month      time.Time   `json:"month"`
	Weekdays   []int       `json:"weekdays"`
	Fallback   bool        `json:"fallback"`
	ClassDates []time.Time `json:"class_dates"`
}
