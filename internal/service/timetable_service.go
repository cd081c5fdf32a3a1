package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
	"github.com/newuzbdev/edunite/pkg/cache"
	appErrors "github.com/newuzbdev/edunite/pkg/errors"
)

var timetableCachePattern = cache.Pattern("timetable")

type lessonRangeReader interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Lesson, error)
}

type groupLister interface {
	List(ctx context.Context) ([]models.Group, error)
}

// TimetableConfig tunes the weekly grid.
type TimetableConfig struct {
	HourFrom int
	HourTo   int
	CacheTTL time.Duration
}

// TimetableService builds calendar grids and resolves weekly timetable cells.
type TimetableService struct {
	lessons lessonRangeReader
	groups  groupLister
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	hours   []int
	ttl     time.Duration
}

// NewTimetableService constructs a TimetableService. An empty hour band falls
// back to 8-21.
func NewTimetableService(lessons lessonRangeReader, groups groupLister, cacheSvc *CacheService, metrics *MetricsService, cfg TimetableConfig, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	hours := scheduling.HourBand(cfg.HourFrom, cfg.HourTo)
	if len(hours) == 0 {
		hours = scheduling.HourBand(8, 21)
	}
	return &TimetableService{
		lessons: lessons,
		groups:  groups,
		cache:   cacheSvc,
		metrics: metrics,
		logger:  logger,
		hours:   hours,
		ttl:     cfg.CacheTTL,
	}
}

// Month returns every date of the anchor's month with navigation anchors.
func (s *TimetableService) Month(anchor time.Time) models.CalendarMonth {
	return models.CalendarMonth{
		Month:    scheduling.MonthStart(anchor),
		Dates:    scheduling.DatesOfMonth(anchor),
		Previous: scheduling.AddMonths(anchor, -1),
		Next:     scheduling.AddMonths(anchor, 1),
	}
}

// Week returns the Monday-first week of the anchor and the hour band.
func (s *TimetableService) Week(anchor time.Time) models.CalendarWeek {
	start := scheduling.WeekStart(anchor)
	return models.CalendarWeek{
		WeekStart: start,
		Dates:     scheduling.DatesOfWeek(anchor),
		Hours:     append([]int(nil), s.hours...),
		Previous:  start.AddDate(0, 0, -7),
		Next:      start.AddDate(0, 0, 7),
	}
}

// Timetable resolves every (date, hour) cell of the anchor's week to the
// lesson starting in it. Cells holding several lessons show the first one and
// are counted as anomalies.
func (s *TimetableService) Timetable(ctx context.Context, anchor time.Time, filter models.ScheduleFilter) (*models.TimetableWeek, error) {
	week := s.Week(anchor)
	key := cache.Key("timetable", week.WeekStart.Format(scheduling.DateLayout), filter.TeacherID, filter.CourseID, filter.RoomID, filter.GroupID)

	var cached models.TimetableWeek
	if s.cache.Get(ctx, key, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	lessons, err := s.lessons.ListBetween(ctx, week.Dates[0], week.Dates[len(week.Dates)-1])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}

	var lookup scheduling.GroupLookup
	if filter.CourseID != "" {
		groups, err := s.groups.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load groups")
		}
		byID := make(map[string]models.Group, len(groups))
		for _, g := range groups {
			byID[g.ID] = g
		}
		lookup = func(id string) (models.Group, bool) {
			g, ok := byID[id]
			return g, ok
		}
	}

	result := &models.TimetableWeek{
		WeekStart: week.WeekStart,
		Dates:     week.Dates,
		Hours:     week.Hours,
		Filter:    filter,
	}
	for _, cell := range scheduling.WeekCells(anchor, s.hours) {
		lesson, matches := scheduling.LessonAt(cell.Date, cell.Hour, lessons, filter, lookup)
		if matches > 1 {
			result.Anomalies++
			s.metrics.RecordCellAnomaly()
			s.logger.Warn("timetable cell holds several lessons",
				zap.String("date", cell.Date.Format(scheduling.DateLayout)),
				zap.Int("hour", cell.Hour),
				zap.Int("lessons", matches),
				zap.String("shown_lesson_id", lesson.ID),
			)
		}
		entry := models.TimetableCell{CalendarCell: cell, Lesson: lesson}
		if lesson != nil {
			room := models.RoomOf(*lesson)
			entry.Room = &room
		}
		result.Cells = append(result.Cells, entry)
	}

	_ = s.cache.Set(ctx, key, result, s.ttl)
	return result, nil
}
