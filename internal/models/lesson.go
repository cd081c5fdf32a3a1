package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire form of calendar dates.
const DateLayout = "2006-01-02"

func parseWireDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return date, nil
}

// LessonType distinguishes lessons held in a room from online ones.
type LessonType string

const (
	LessonTypeOffline LessonType = "offline"
	LessonTypeOnline  LessonType = "online"
)

// Valid returns true when the type is supported.
func (t LessonType) Valid() bool {
	return t == LessonTypeOffline || t == LessonTypeOnline
}

// Lesson is a concrete, dated occurrence owned by a group.
type Lesson struct {
	ID        string     `db:"id" json:"id"`
	GroupID   string     `db:"group_id" json:"group_id"`
	Date      time.Time  `db:"date" json:"date"`
	StartTime string     `db:"start_time" json:"start_time"`
	EndTime   string     `db:"end_time" json:"end_time"`
	TeacherID string     `db:"teacher_id" json:"teacher_id"`
	RoomID    *string    `db:"room_id" json:"room_id,omitempty"`
	Type      LessonType `db:"type" json:"type"`
	Notes     *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

type lessonFields Lesson

// MarshalJSON writes Date as YYYY-MM-DD.
func (l Lesson) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		lessonFields
		Date string `json:"date"`
	}{lessonFields(l), l.Date.Format(DateLayout)})
}

// UnmarshalJSON reads the YYYY-MM-DD form written by MarshalJSON.
func (l *Lesson) UnmarshalJSON(raw []byte) error {
	var aux struct {
		lessonFields
		Date string `json:"date"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	date, err := parseWireDate(aux.Date)
	if err != nil {
		return err
	}
	*l = Lesson(aux.lessonFields)
	l.Date = date
	return nil
}

// PhysicalRoomID returns the room the lesson occupies, if any. Online lessons
// never hold a room.
func (l Lesson) PhysicalRoomID() (string, bool) {
	if l.Type == LessonTypeOnline || l.RoomID == nil || *l.RoomID == "" {
		return "", false
	}
	return *l.RoomID, true
}

// LessonFilter narrows lesson listings.
type LessonFilter struct {
	GroupID   string
	TeacherID string
	RoomID    string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// ScheduleFilter selects which lessons a timetable cell shows. Empty fields match anything.
type ScheduleFilter struct {
	TeacherID string `json:"teacher_id,omitempty"`
	CourseID  string `json:"course_id,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f ScheduleFilter) IsZero() bool {
	return f == ScheduleFilter{}
}

// ConflictDimension names the shared resource two lessons compete for.
type ConflictDimension string

const (
	ConflictTeacher ConflictDimension = "TEACHER"
	ConflictRoom    ConflictDimension = "ROOM"
	ConflictGroup   ConflictDimension = "GROUP"
)

// LessonConflict describes an existing lesson that blocks a candidate.
type LessonConflict struct {
	LessonID  string            `json:"lesson_id"`
	GroupID   string            `json:"group_id"`
	TeacherID string            `json:"teacher_id"`
	RoomID    *string           `json:"room_id,omitempty"`
	Date      time.Time         `json:"date"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Dimension ConflictDimension `json:"dimension"`
}

type conflictFields LessonConflict

// MarshalJSON writes Date as YYYY-MM-DD.
func (c LessonConflict) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		conflictFields
		Date string `json:"date"`
	}{conflictFields(c), c.Date.Format(DateLayout)})
}

// UnmarshalJSON reads the YYYY-MM-DD form written by MarshalJSON.
func (c *LessonConflict) UnmarshalJSON(raw []byte) error {
	var aux struct {
		conflictFields
		Date string `json:"date"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	date, err := parseWireDate(aux.Date)
	if err != nil {
		return err
	}
	*c = LessonConflict(aux.conflictFields)
	c.Date = date
	return nil
}

// LessonConflictError is returned when a lesson collides with an existing one.
type LessonConflictError struct {
	Message  string         `json:"message"`
	Conflict LessonConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *LessonConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
