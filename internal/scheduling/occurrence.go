package scheduling

import (
	"strings"
	"time"

	"github.com/newuzbdev/edunite/internal/models"
)

// GroupLookup resolves a group by id. It backs filters that reach through the
// owning group, such as course.
type GroupLookup func(id string) (models.Group, bool)

// ClassDatesInRange keeps the dates whose weekday is in set, in input order.
func ClassDatesInRange(set WeekdaySet, dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if set.Has(d.Weekday()) {
			out = append(out, d)
		}
	}
	return out
}

// MatchesFilter reports whether a lesson passes every non-empty filter field.
// A room filter of "online" selects online lessons.
func MatchesFilter(l models.Lesson, filter models.ScheduleFilter, groups GroupLookup) bool {
	if filter.IsZero() {
		return true
	}
	if filter.GroupID != "" && l.GroupID != filter.GroupID {
		return false
	}
	if filter.TeacherID != "" && l.TeacherID != filter.TeacherID {
		return false
	}
	if filter.RoomID != "" {
		if strings.EqualFold(filter.RoomID, models.OnlineRoomSentinel) {
			if l.Type != models.LessonTypeOnline {
				return false
			}
		} else if room := models.RoomOf(l); !room.IsPhysical() || room.ID != filter.RoomID {
			return false
		}
	}
	if filter.CourseID != "" {
		if groups == nil {
			return false
		}
		group, ok := groups(l.GroupID)
		if !ok || group.CourseID != filter.CourseID {
			return false
		}
	}
	return true
}

// LessonAt finds the lesson shown in the (date, hour) cell: same calendar day,
// start hour equal to hour, passing the filter. The first match wins; the
// returned count lets callers report cells holding more than one lesson.
func LessonAt(date time.Time, hour int, lessons []models.Lesson, filter models.ScheduleFilter, groups GroupLookup) (*models.Lesson, int) {
	var (
		found   *models.Lesson
		matches int
	)
	for i := range lessons {
		l := lessons[i]
		if !SameDay(l.Date, date) {
			continue
		}
		start, err := ParseClock(l.StartTime)
		if err != nil || start.Hour() != hour {
			continue
		}
		if !MatchesFilter(l, filter, groups) {
			continue
		}
		matches++
		if found == nil {
			found = &l
		}
	}
	return found, matches
}

// ProjectLessons builds one lesson per class date of the group, copying the
// group's teacher, room, times and type. Ids and timestamps are left for the
// caller to assign.
func ProjectLessons(group models.Group, set WeekdaySet, dates []time.Time) []models.Lesson {
	classDates := ClassDatesInRange(set, dates)
	roomID, lessonType := models.NormalizeRoom(group.RoomID, group.Type)
	lessons := make([]models.Lesson, 0, len(classDates))
	for _, d := range classDates {
		var room *string
		if roomID != nil {
			id := *roomID
			room = &id
		}
		lessons = append(lessons, models.Lesson{
			GroupID:   group.ID,
			Date:      Day(d),
			StartTime: group.StartTime,
			EndTime:   group.EndTime,
			TeacherID: group.TeacherID,
			RoomID:    room,
			Type:      lessonType,
		})
	}
	return lessons
}
