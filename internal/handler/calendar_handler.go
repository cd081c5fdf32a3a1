package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newuzbdev/edunite/internal/middleware"
	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/pkg/response"
)

type timetableService interface {
	Month(anchor time.Time) models.CalendarMonth
	Week(anchor time.Time) models.CalendarWeek
	Timetable(ctx context.Context, anchor time.Time, filter models.ScheduleFilter) (*models.TimetableWeek, error)
}

// CalendarHandler serves the month and week grids and the weekly timetable.
type CalendarHandler struct {
	service timetableService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(svc timetableService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// Month godoc
// @Summary Month grid
// @Tags Calendar
// @Produce json
// @Param anchor query string false "Any date of the month (YYYY-MM-DD), default today"
// @Success 200 {object} response.Envelope
// @Router /calendar/month [get]
func (h *CalendarHandler) Month(c *gin.Context) {
	anchor, err := dateQuery(c, "anchor")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.service.Month(anchor), nil)
}

// Week godoc
// @Summary Week grid, Monday first
// @Tags Calendar
// @Produce json
// @Param anchor query string false "Any date of the week (YYYY-MM-DD), default today"
// @Success 200 {object} response.Envelope
// @Router /calendar/week [get]
func (h *CalendarHandler) Week(c *gin.Context) {
	anchor, err := dateQuery(c, "anchor")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.service.Week(anchor), nil)
}

// Timetable godoc
// @Summary Weekly timetable
// @Tags Calendar
// @Produce json
// @Param anchor query string false "Any date of the week (YYYY-MM-DD), default today"
// @Param teacherId query string false "Filter by teacher"
// @Param courseId query string false "Filter by course"
// @Param roomId query string false "Filter by room, online for online lessons"
// @Param groupId query string false "Filter by group"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *CalendarHandler) Timetable(c *gin.Context) {
	anchor, err := dateQuery(c, "anchor")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ScheduleFilter{
		TeacherID: c.Query("teacherId"),
		CourseID:  c.Query("courseId"),
		RoomID:    c.Query("roomId"),
		GroupID:   c.Query("groupId"),
	}
	week, err := h.service.Timetable(c.Request.Context(), anchor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, week.Cached)
	if week.Anomalies > 0 {
		middleware.SetMeta(c, "anomalies", week.Anomalies)
	}
	response.JSON(c, http.StatusOK, week, nil, middleware.ExtractMeta(c))
}
