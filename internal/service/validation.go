package service

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
)

func registerSchedulingValidators(v *validator.Validate) {
	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseClock(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseDate(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("calendar_month", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseMonth(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("lesson_type", func(fl validator.FieldLevel) bool {
		return models.LessonType(strings.ToLower(fl.Field().String())).Valid()
	})
	v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseAttendanceStatus(fl.Field().String())
		return ok
	})
}
