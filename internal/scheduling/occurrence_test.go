package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newuzbdev/edunite/internal/models"
)

func TestClassDatesInRangeKeepsOrderAndWeekdays(t *testing.T) {
	set := NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)
	dates := DatesOfMonth(date(2026, time.October, 1))

	classDates := ClassDatesInRange(set, dates)
	require.NotEmpty(t, classDates)
	for i, d := range classDates {
		assert.True(t, set.Has(d.Weekday()), d)
		if i > 0 {
			assert.True(t, d.After(classDates[i-1]))
		}
	}
	// October 2026 has four Mondays, four Wednesdays and five Fridays.
	assert.Len(t, classDates, 13)
	assert.Equal(t, date(2026, time.October, 2), classDates[0])

	reversed := []time.Time{date(2026, time.October, 9), date(2026, time.October, 8), date(2026, time.October, 7)}
	assert.Equal(t, []time.Time{reversed[0], reversed[2]}, ClassDatesInRange(set, reversed))
	assert.Len(t, reversed, 3, "input must not be mutated")
}

func TestLessonAtResolvesCell(t *testing.T) {
	day := date(2026, time.October, 19)
	lessons := []models.Lesson{
		{ID: "a", GroupID: "g-1", TeacherID: "t-1", RoomID: strPtr("r-1"), Type: models.LessonTypeOffline, Date: day, StartTime: "09:00", EndTime: "10:30"},
		{ID: "b", GroupID: "g-2", TeacherID: "t-2", Type: models.LessonTypeOnline, Date: day, StartTime: "09:30", EndTime: "10:30"},
		{ID: "c", GroupID: "g-3", TeacherID: "t-3", Date: day.AddDate(0, 0, 1), StartTime: "09:00", EndTime: "10:00"},
	}
	groups := func(id string) (models.Group, bool) {
		switch id {
		case "g-1":
			return models.Group{ID: id, CourseID: "english"}, true
		case "g-2":
			return models.Group{ID: id, CourseID: "math"}, true
		}
		return models.Group{}, false
	}

	lesson, n := LessonAt(day, 9, lessons, models.ScheduleFilter{}, groups)
	require.NotNil(t, lesson)
	assert.Equal(t, "a", lesson.ID)
	assert.Equal(t, 2, n)

	lesson, n = LessonAt(day, 9, lessons, models.ScheduleFilter{TeacherID: "t-2"}, groups)
	require.NotNil(t, lesson)
	assert.Equal(t, "b", lesson.ID)
	assert.Equal(t, 1, n)

	lesson, _ = LessonAt(day, 9, lessons, models.ScheduleFilter{CourseID: "english"}, groups)
	require.NotNil(t, lesson)
	assert.Equal(t, "a", lesson.ID)

	lesson, _ = LessonAt(day, 9, lessons, models.ScheduleFilter{RoomID: "online"}, groups)
	require.NotNil(t, lesson)
	assert.Equal(t, "b", lesson.ID)

	lesson, n = LessonAt(day, 10, lessons, models.ScheduleFilter{}, groups)
	assert.Nil(t, lesson)
	assert.Zero(t, n)

	lesson, _ = LessonAt(day, 9, lessons, models.ScheduleFilter{CourseID: "english"}, nil)
	assert.Nil(t, lesson)
}

func TestLessonAtDoesNotMutateInput(t *testing.T) {
	day := date(2026, time.October, 19)
	lessons := []models.Lesson{{ID: "a", Date: day, StartTime: "09:00", EndTime: "10:00"}}
	lesson, _ := LessonAt(day, 9, lessons, models.ScheduleFilter{}, nil)
	require.NotNil(t, lesson)
	lesson.ID = "changed"
	assert.Equal(t, "a", lessons[0].ID)
}

func TestProjectLessons(t *testing.T) {
	group := models.Group{
		ID:        "g-1",
		TeacherID: "t-1",
		RoomID:    strPtr("online"),
		Schedule:  "Dush-Chors-Juma 18:00-19:30",
		StartTime: "18:00",
		EndTime:   "19:30",
	}
	set, ok := ParseWeekdays(group.Schedule)
	require.True(t, ok)

	lessons := ProjectLessons(group, set, DatesOfWeek(date(2026, time.October, 21)))
	require.Len(t, lessons, 3)
	assert.Equal(t, date(2026, time.October, 19), lessons[0].Date)
	assert.Equal(t, date(2026, time.October, 21), lessons[1].Date)
	assert.Equal(t, date(2026, time.October, 23), lessons[2].Date)
	for _, l := range lessons {
		assert.Equal(t, "g-1", l.GroupID)
		assert.Equal(t, "t-1", l.TeacherID)
		assert.Equal(t, models.LessonTypeOnline, l.Type)
		assert.Nil(t, l.RoomID)
		assert.Empty(t, l.ID)
	}
}
