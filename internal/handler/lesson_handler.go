package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
	"github.com/newuzbdev/edunite/internal/service"
	"github.com/newuzbdev/edunite/pkg/response"
)

type lessonService interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Lesson, error)
	Create(ctx context.Context, req service.LessonRequest) (*models.Lesson, error)
	Update(ctx context.Context, id string, req service.LessonRequest) (*models.Lesson, error)
	Delete(ctx context.Context, id string) error
	Check(ctx context.Context, req service.LessonRequest, ignoreID string) ([]models.LessonConflict, error)
	Import(ctx context.Context, req service.ImportLessonsRequest) (*service.ImportLessonsResult, error)
	ProjectGroup(ctx context.Context, groupID string, req service.ProjectLessonsRequest) (*service.ProjectLessonsResult, error)
}

// LessonHandler manages lesson endpoints.
type LessonHandler struct {
	service lessonService
}

// NewLessonHandler constructs handler.
func NewLessonHandler(svc lessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// List godoc
// @Summary List lessons
// @Tags Lessons
// @Produce json
// @Param groupId query string false "Filter by group"
// @Param teacherId query string false "Filter by teacher"
// @Param roomId query string false "Filter by room"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	filter := models.LessonFilter{
		GroupID:   c.Query("groupId"),
		TeacherID: c.Query("teacherId"),
		RoomID:    c.Query("roomId"),
	}
	for key, dst := range map[string]**time.Time{"from": &filter.DateFrom, "to": &filter.DateTo} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		date, err := scheduling.ParseDate(raw)
		if err != nil {
			response.Error(c, invalidPayload(err))
			return
		}
		*dst = &date
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	lessons, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Get godoc
// @Summary Get lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Create godoc
// @Summary Create lesson
// @Description Rejects with 409 when the group, teacher or room is already booked.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body service.LessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var req service.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	lesson, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Update godoc
// @Summary Update lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.LessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	var req service.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	lesson, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Delete godoc
// @Summary Delete lesson
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Check godoc
// @Summary Check a lesson slot
// @Description Lists every conflicting lesson. conflict holds the first one, or null when the slot is free.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param ignoreId query string false "Lesson being edited"
// @Param payload body service.LessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Router /lessons/check [post]
func (h *LessonHandler) Check(c *gin.Context) {
	var req service.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	conflicts, err := h.service.Check(c.Request.Context(), req, c.Query("ignoreId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var first *models.LessonConflict
	if len(conflicts) > 0 {
		first = &conflicts[0]
	}
	response.JSON(c, http.StatusOK, gin.H{"available": first == nil, "conflict": first, "conflicts": conflicts}, nil)
}

// Import godoc
// @Summary Import lessons
// @Description Stores lessons without the conflict check and lists resulting overlaps.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body service.ImportLessonsRequest true "Lessons"
// @Success 201 {object} response.Envelope
// @Router /lessons/import [post]
func (h *LessonHandler) Import(c *gin.Context) {
	var req service.ImportLessonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.service.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil, map[string]interface{}{"overlaps": len(result.Overlaps)})
}

// Project godoc
// @Summary Project a group's lessons
// @Description Creates one lesson per class date of the group in the range.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.ProjectLessonsRequest true "Range"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id}/lessons/project [post]
func (h *LessonHandler) Project(c *gin.Context) {
	var req service.ProjectLessonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.service.ProjectGroup(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}
