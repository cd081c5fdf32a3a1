package handler

import (
	"github.com/gin-gonic/gin"
)

// Routes binds the handlers to the API prefix. Authenticate and AdminOnly are
// optional; when Authenticate is nil every route is open.
type Routes struct {
	Calendar   *CalendarHandler
	Lessons    *LessonHandler
	Attendance *AttendanceHandler

	Authenticate gin.HandlerFunc
	AdminOnly    gin.HandlerFunc
}

// Register mounts every endpoint on the group.
func (r Routes) Register(api *gin.RouterGroup) {
	if r.Authenticate != nil {
		api.Use(r.Authenticate)
	}
	admin := []gin.HandlerFunc{}
	if r.Authenticate != nil && r.AdminOnly != nil {
		admin = append(admin, r.AdminOnly)
	}

	api.GET("/calendar/month", r.Calendar.Month)
	api.GET("/calendar/week", r.Calendar.Week)
	api.GET("/timetable", r.Calendar.Timetable)

	lessons := api.Group("/lessons")
	lessons.GET("", r.Lessons.List)
	lessons.POST("", r.Lessons.Create)
	lessons.POST("/check", r.Lessons.Check)
	lessons.POST("/import", r.Lessons.Import)
	lessons.GET("/:id", r.Lessons.Get)
	lessons.PUT("/:id", r.Lessons.Update)
	lessons.DELETE("/:id", r.Lessons.Delete)

	groups := api.Group("/groups/:id")
	groups.GET("/class-dates", r.Attendance.ClassDates)
	groups.POST("/lessons/project", r.Lessons.Project)
	groups.GET("/attendance", r.Attendance.Roster)
	groups.GET("/attendance/export", r.Attendance.Export)
	groups.POST("/attendance/import", append(admin, r.Attendance.Import)...)

	api.POST("/attendance/toggle", r.Attendance.Toggle)
	api.PUT("/attendance", append(admin, r.Attendance.Set)...)
	api.GET("/students/:id/attendance/stats", r.Attendance.StudentStats)
}
