package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/service"
	appErrors "github.com/newuzbdev/edunite/pkg/errors"
	"github.com/newuzbdev/edunite/pkg/response"
)

// maxRosterUpload bounds an imported roster file.
const maxRosterUpload = 2 << 20

type attendanceService interface {
	ToggleRequest(ctx context.Context, req service.ToggleAttendanceRequest) (models.AttendanceStatus, error)
	SetRequest(ctx context.Context, req service.SetAttendanceRequest) (models.AttendanceStatus, error)
}

type rosterService interface {
	ClassDates(ctx context.Context, groupID string, month time.Time) (*models.GroupClassDates, error)
	Roster(ctx context.Context, groupID string, month time.Time) (*models.GroupRoster, error)
	StudentStats(ctx context.Context, studentID, groupID string, month time.Time) (models.AttendanceStats, error)
	Export(ctx context.Context, groupID string, month time.Time, format service.RosterFormat) (*service.RosterFile, error)
	Import(ctx context.Context, groupID string, r io.Reader) (*service.ImportAttendanceResult, error)
}

// AttendanceHandler serves attendance marking and the monthly roster.
type AttendanceHandler struct {
	attendance attendanceService
	roster     rosterService
}

// NewAttendanceHandler constructs handler.
func NewAttendanceHandler(attendance attendanceService, roster rosterService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, roster: roster}
}

// Toggle godoc
// @Summary Toggle attendance
// @Description Advances none, present, late, absent and back to none.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.ToggleAttendanceRequest true "Cell"
// @Success 200 {object} response.Envelope
// @Router /attendance/toggle [post]
func (h *AttendanceHandler) Toggle(c *gin.Context) {
	var req service.ToggleAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	status, err := h.attendance.ToggleRequest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": req.StudentID, "date": req.Date, "status": status}, nil)
}

// Set godoc
// @Summary Set attendance
// @Description Administrative write of any status; none clears the cell.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SetAttendanceRequest true "Cell and status"
// @Success 200 {object} response.Envelope
// @Router /attendance [put]
func (h *AttendanceHandler) Set(c *gin.Context) {
	var req service.SetAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	status, err := h.attendance.SetRequest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if claims := claimsFromContext(c); claims != nil {
		meta = map[string]interface{}{"updated_by": claims.UserID}
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": req.StudentID, "date": req.Date, "status": status}, nil, meta)
}

// ClassDates godoc
// @Summary Class dates of a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Param month query string false "Month (YYYY-MM), default current"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/class-dates [get]
func (h *AttendanceHandler) ClassDates(c *gin.Context) {
	month, err := monthQuery(c, "month")
	if err != nil {
		response.Error(c, err)
		return
	}
	dates, err := h.roster.ClassDates(c.Request.Context(), c.Param("id"), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dates, nil)
}

// Roster godoc
// @Summary Monthly attendance roster
// @Tags Attendance
// @Produce json
// @Param id path string true "Group ID"
// @Param month query string false "Month (YYYY-MM), default current"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/attendance [get]
func (h *AttendanceHandler) Roster(c *gin.Context) {
	month, err := monthQuery(c, "month")
	if err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.roster.Roster(c.Request.Context(), c.Param("id"), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// StudentStats godoc
// @Summary Attendance stats of a student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param groupId query string false "Group, default the student's own"
// @Param month query string false "Month (YYYY-MM), default current"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance/stats [get]
func (h *AttendanceHandler) StudentStats(c *gin.Context) {
	month, err := monthQuery(c, "month")
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.roster.StudentStats(c.Request.Context(), c.Param("id"), c.Query("groupId"), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export the monthly roster
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Group ID"
// @Param month query string false "Month (YYYY-MM), default current"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /groups/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	month, err := monthQuery(c, "month")
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.RosterFormat(strings.ToLower(c.DefaultQuery("format", string(service.RosterFormatCSV))))
	file, err := h.roster.Export(c.Request.Context(), c.Param("id"), month, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

// Import godoc
// @Summary Import a roster CSV
// @Description Accepts the CSV produced by export, as a raw body or a multipart "file" field.
// @Tags Attendance
// @Accept text/csv
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/attendance/import [post]
func (h *AttendanceHandler) Import(c *gin.Context) {
	body, closeBody, err := rosterUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeBody()

	result, err := h.roster.Import(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func rosterUpload(c *gin.Context) (io.Reader, func(), error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRosterUpload)
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return c.Request.Body, func() {}, nil
	}
	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required")
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read uploaded file")
	}
	return file, func() { _ = file.Close() }, nil
}
