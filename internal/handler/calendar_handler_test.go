package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newuzbdev/edunite/internal/middleware"
	"github.com/newuzbdev/edunite/internal/models"
)

type timetableServiceMock struct {
	anchor time.Time
	filter models.ScheduleFilter
	week   models.TimetableWeek
}

func (m *timetableServiceMock) Month(anchor time.Time) models.CalendarMonth {
	m.anchor = anchor
	return models.CalendarMonth{Month: anchor}
}

func (m *timetableServiceMock) Week(anchor time.Time) models.CalendarWeek {
	m.anchor = anchor
	return models.CalendarWeek{WeekStart: anchor}
}

func (m *timetableServiceMock) Timetable(ctx context.Context, anchor time.Time, filter models.ScheduleFilter) (*models.TimetableWeek, error) {
	m.anchor = anchor
	m.filter = filter
	week := m.week
	return &week, nil
}

func TestCalendarHandlerAnchorDefaultsToToday(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock = func() time.Time { return time.Date(2026, time.October, 19, 9, 15, 0, 0, time.UTC) }
	defer func() { clock = time.Now }()
	svc := &timetableServiceMock{}
	handler := NewCalendarHandler(svc)

	c, w := newGinContext(http.MethodGet, "/calendar/month", nil)
	handler.Month(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), svc.anchor)

	c, w = newGinContext(http.MethodGet, "/calendar/week?anchor=2026-02-30", nil)
	handler.Week(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendarHandlerTimetableFiltersAndMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{week: models.TimetableWeek{Anomalies: 2, Cached: true}}
	handler := NewCalendarHandler(svc)

	c, w := newGinContext(http.MethodGet, "/timetable?anchor=2026-10-21&teacherId=t-1&roomId=online&groupId=g-3", nil)
	middleware.WithResponseMeta()(c)
	handler.Timetable(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ScheduleFilter{TeacherID: "t-1", RoomID: "online", GroupID: "g-3"}, svc.filter)
	assert.Equal(t, time.Date(2026, time.October, 21, 0, 0, 0, 0, time.UTC), svc.anchor)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, float64(2), env.Meta["anomalies"])
}
