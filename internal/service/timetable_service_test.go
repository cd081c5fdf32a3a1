package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newuzbdev/edunite/internal/models"
)

func newTimetableFixture(lessons ...models.Lesson) (*TimetableService, *mockLessonRepo, *stubCacheRepo, *MetricsService) {
	repo := newMockLessonRepo(lessons...)
	cacheRepo := newStubCacheRepo()
	metrics := NewMetricsService()
	cacheSvc := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true)
	svc := NewTimetableService(repo, testGroups(), cacheSvc, metrics, TimetableConfig{HourFrom: 8, HourTo: 21}, zap.NewNop())
	return svc, repo, cacheRepo, metrics
}

func TestTimetableMonthAndWeekShapes(t *testing.T) {
	svc, _, _, _ := newTimetableFixture()

	month := svc.Month(day(2026, time.February, 14))
	assert.Len(t, month.Dates, 28)
	assert.Equal(t, day(2026, time.February, 1), month.Month)
	assert.Equal(t, day(2026, time.January, 1), month.Previous)
	assert.Equal(t, day(2026, time.March, 1), month.Next)

	// 2026-10-25 is a Sunday and belongs to the week starting Monday the 19th.
	week := svc.Week(day(2026, time.October, 25))
	require.Len(t, week.Dates, 7)
	assert.Equal(t, day(2026, time.October, 19), week.WeekStart)
	assert.Equal(t, time.Monday, week.Dates[0].Weekday())
	assert.Equal(t, time.Sunday, week.Dates[6].Weekday())
	assert.Equal(t, day(2026, time.October, 12), week.Previous)
	assert.Equal(t, day(2026, time.October, 26), week.Next)
	assert.Len(t, week.Hours, 14)
}

func TestTimetableEmptyHourBandFallsBack(t *testing.T) {
	svc := NewTimetableService(newMockLessonRepo(), testGroups(), nil, nil, TimetableConfig{HourFrom: 20, HourTo: 9}, nil)
	week := svc.Week(day(2026, time.October, 19))
	assert.Equal(t, 8, week.Hours[0])
	assert.Equal(t, 21, week.Hours[len(week.Hours)-1])
}

func TestTimetablePlacesLessonsByStartHour(t *testing.T) {
	svc, _, _, _ := newTimetableFixture(
		existingLesson("l-1", "g-1", "t-1", roomPtr("r-1"), "2026-10-19", "14:00", "15:30"),
		existingLesson("l-2", "g-2", "t-2", roomPtr("r-2"), "2026-10-20", "10:30", "12:00"),
		existingLesson("l-3", "g-1", "t-1", roomPtr("r-1"), "2026-10-27", "14:00", "15:30"),
	)

	week, err := svc.Timetable(context.Background(), day(2026, time.October, 21), models.ScheduleFilter{})
	require.NoError(t, err)
	assert.Len(t, week.Cells, 7*14)
	assert.Zero(t, week.Anomalies)

	found := map[string]models.CalendarCell{}
	for _, cell := range week.Cells {
		if cell.Lesson != nil {
			found[cell.Lesson.ID] = cell.CalendarCell
		}
	}
	require.Len(t, found, 2, "lessons outside the week are not shown")
	assert.Equal(t, 14, found["l-1"].Hour)
	assert.Equal(t, 10, found["l-2"].Hour)
}

func TestTimetableCellsCarryRoom(t *testing.T) {
	online := existingLesson("l-2", "g-3", "t-3", nil, "2026-10-19", "18:00", "19:00")
	online.Type = models.LessonTypeOnline
	svc, _, _, _ := newTimetableFixture(
		existingLesson("l-1", "g-1", "t-1", roomPtr("r-1"), "2026-10-19", "14:00", "15:30"),
		online,
	)

	week, err := svc.Timetable(context.Background(), day(2026, time.October, 19), models.ScheduleFilter{})
	require.NoError(t, err)
	rooms := map[string]models.Room{}
	for _, cell := range week.Cells {
		if cell.Lesson == nil {
			assert.Nil(t, cell.Room)
			continue
		}
		require.NotNil(t, cell.Room)
		rooms[cell.Lesson.ID] = *cell.Room
	}
	assert.Equal(t, models.PhysicalRoom("r-1", "", 0), rooms["l-1"])
	assert.Equal(t, models.OnlineRoom(), rooms["l-2"])
	assert.False(t, rooms["l-2"].IsPhysical())
}

func TestTimetableFiltersByCourseThroughGroup(t *testing.T) {
	svc, _, _, _ := newTimetableFixture(
		existingLesson("l-1", "g-1", "t-1", roomPtr("r-1"), "2026-10-19", "14:00", "15:30"),
		existingLesson("l-2", "g-2", "t-2", roomPtr("r-2"), "2026-10-19", "14:00", "15:30"),
	)

	week, err := svc.Timetable(context.Background(), day(2026, time.October, 19), models.ScheduleFilter{CourseID: "c-math"})
	require.NoError(t, err)
	var shown []string
	for _, cell := range week.Cells {
		if cell.Lesson != nil {
			shown = append(shown, cell.Lesson.ID)
		}
	}
	assert.Equal(t, []string{"l-2"}, shown)
}

func TestTimetableCountsDoubleBookedCells(t *testing.T) {
	svc, _, _, metrics := newTimetableFixture(
		existingLesson("l-1", "g-1", "t-1", roomPtr("r-1"), "2026-10-19", "14:00", "15:30"),
		existingLesson("l-2", "g-2", "t-2", roomPtr("r-2"), "2026-10-19", "14:30", "15:30"),
	)

	week, err := svc.Timetable(context.Background(), day(2026, time.October, 19), models.ScheduleFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, week.Anomalies)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cellAnomalies))
}

func TestTimetableServedFromCacheUntilInvalidated(t *testing.T) {
	svc, repo, cacheRepo, _ := newTimetableFixture(
		existingLesson("l-1", "g-1", "t-1", roomPtr("r-1"), "2026-10-19", "14:00", "15:30"),
	)
	ctx := context.Background()
	anchor := day(2026, time.October, 19)

	_, err := svc.Timetable(ctx, anchor, models.ScheduleFilter{TeacherID: "t-1"})
	require.NoError(t, err)
	cached, err := svc.Timetable(ctx, anchor, models.ScheduleFilter{TeacherID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	assert.True(t, cached.Cached)
	assert.Len(t, cached.Cells, 7*14)

	require.NoError(t, cacheRepo.DeleteByPattern(ctx, timetableCachePattern))
	_, err = svc.Timetable(ctx, anchor, models.ScheduleFilter{TeacherID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}
