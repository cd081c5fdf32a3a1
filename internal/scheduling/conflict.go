package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newuzbdev/edunite/internal/models"
)

// Minutes counts minutes since midnight.
type Minutes int

// ParseClock reads an "HH:MM" (or "H:MM") wall-clock time.
func ParseClock(raw string) (Minutes, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return Minutes(h*60 + m), nil
}

// Hour returns the hour component.
func (m Minutes) Hour() int {
	return int(m) / 60
}

func (m Minutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// Interval is a half-open [Start, End) time span within one day.
type Interval struct {
	Start Minutes
	End   Minutes
}

// NewInterval parses start and end; end must come after start.
func NewInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	if e <= s {
		return Interval{}, fmt.Errorf("end time %s must be after start time %s", end, start)
	}
	return Interval{Start: s, End: e}, nil
}

// Overlaps reports whether two half-open intervals share any minute. Touching
// endpoints do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Candidate is a lesson about to be created or moved.
type Candidate struct {
	// ID is set on the update path so the lesson does not collide with itself.
	ID        string
	GroupID   string
	TeacherID string
	RoomID    *string
	Type      models.LessonType
	Date      time.Time
	StartTime string
	EndTime   string
}

// CandidateFromLesson describes an existing or proposed lesson as a candidate.
func CandidateFromLesson(l models.Lesson) Candidate {
	return Candidate{
		ID:        l.ID,
		GroupID:   l.GroupID,
		TeacherID: l.TeacherID,
		RoomID:    l.RoomID,
		Type:      l.Type,
		Date:      l.Date,
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
	}
}

// Room returns the tagged room the candidate would occupy.
func (c Candidate) Room() models.Room {
	return models.RoomOf(models.Lesson{RoomID: c.RoomID, Type: c.Type})
}

// Conflict is an existing lesson blocking a candidate.
type Conflict struct {
	Lesson    models.Lesson
	Dimension models.ConflictDimension
}

// Describe converts the conflict into its API form.
func (c Conflict) Describe() models.LessonConflict {
	return models.LessonConflict{
		LessonID:  c.Lesson.ID,
		GroupID:   c.Lesson.GroupID,
		TeacherID: c.Lesson.TeacherID,
		RoomID:    c.Lesson.RoomID,
		Date:      c.Lesson.Date,
		StartTime: c.Lesson.StartTime,
		EndTime:   c.Lesson.EndTime,
		Dimension: c.Dimension,
	}
}

// FindConflict returns the first existing lesson that overlaps the candidate
// while sharing its group, teacher or physical room, or nil. Lessons on other
// dates and the candidate itself are skipped. Existing lessons with unreadable
// times are ignored rather than blocking every write.
func FindConflict(c Candidate, existing []models.Lesson) (*Conflict, error) {
	conflicts, err := findConflicts(c, existing, true)
	if err != nil || len(conflicts) == 0 {
		return nil, err
	}
	return &conflicts[0], nil
}

// FindConflicts returns every conflict of the candidate.
func FindConflicts(c Candidate, existing []models.Lesson) ([]Conflict, error) {
	return findConflicts(c, existing, false)
}

func findConflicts(c Candidate, existing []models.Lesson, firstOnly bool) ([]Conflict, error) {
	window, err := NewInterval(c.StartTime, c.EndTime)
	if err != nil {
		return nil, err
	}
	room := c.Room()

	var out []Conflict
	for _, lesson := range existing {
		if c.ID != "" && lesson.ID == c.ID {
			continue
		}
		if !SameDay(lesson.Date, c.Date) {
			continue
		}
		other, err := NewInterval(lesson.StartTime, lesson.EndTime)
		if err != nil || !window.Overlaps(other) {
			continue
		}
		dimension, ok := sharedResource(c, room, lesson)
		if !ok {
			continue
		}
		out = append(out, Conflict{Lesson: lesson, Dimension: dimension})
		if firstOnly {
			break
		}
	}
	return out, nil
}

func sharedResource(c Candidate, room models.Room, lesson models.Lesson) (models.ConflictDimension, bool) {
	if c.GroupID != "" && lesson.GroupID == c.GroupID {
		return models.ConflictGroup, true
	}
	if c.TeacherID != "" && lesson.TeacherID == c.TeacherID {
		return models.ConflictTeacher, true
	}
	if room.IsPhysical() {
		if other := models.RoomOf(lesson); other.IsPhysical() && strings.EqualFold(other.ID, room.ID) {
			return models.ConflictRoom, true
		}
	}
	return "", false
}
