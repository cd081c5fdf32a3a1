package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
	appErrors "github.com/newuzbdev/edunite/pkg/errors"
)

// maxProjectionDays bounds one projection request.
const maxProjectionDays = 366

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.Lesson, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	BulkCreate(ctx context.Context, lessons []models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type groupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
}

// LessonRequest describes a lesson to create, update or check. Teacher, room
// and type default to the owning group's.
type LessonRequest struct {
	GroupID   string  `json:"group_id" validate:"required"`
	Date      string  `json:"date" validate:"required,calendar_date"`
	StartTime string  `json:"start_time" validate:"required,clock"`
	EndTime   string  `json:"end_time" validate:"required,clock"`
	TeacherID string  `json:"teacher_id"`
	RoomID    *string `json:"room_id"`
	Type      string  `json:"type" validate:"omitempty,lesson_type"`
	Notes     *string `json:"notes"`
}

// ImportLessonsRequest carries lessons to store without conflict checks.
type ImportLessonsRequest struct {
	Items []LessonRequest `json:"items" validate:"required,min=1,dive"`
}

// LessonOverlap reports an imported lesson that overlaps another booking.
type LessonOverlap struct {
	Index    int                   `json:"index"`
	Lesson   models.Lesson         `json:"lesson"`
	Conflict models.LessonConflict `json:"conflict"`
}

// ImportLessonsResult summarises an import. Overlaps are reported, not fixed.
type ImportLessonsResult struct {
	Created  []models.Lesson `json:"created"`
	Overlaps []LessonOverlap `json:"overlaps,omitempty"`
}

// ProjectLessonsRequest asks for a group's lessons over a date range.
type ProjectLessonsRequest struct {
	From           string `json:"from" validate:"required,calendar_date"`
	To             string `json:"to" validate:"required,calendar_date"`
	PartialOnError bool   `json:"partial_on_error"`
}

// ProjectLessonsResult summarises a projection.
type ProjectLessonsResult struct {
	Weekdays  scheduling.WeekdaySet   `json:"weekdays"`
	Fallback  bool                    `json:"fallback"`
	Created   []models.Lesson         `json:"created"`
	Conflicts []models.LessonConflict `json:"conflicts,omitempty"`
}

// LessonService coordinates lesson writes behind the conflict check.
type LessonService struct {
	lessons   lessonRepository
	groups    groupRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	// writeMu spans check-then-write: conflicts cross groups through shared
	// teachers and rooms.
	writeMu    sync.Mutex
	groupLocks *keyedMutex
}

// NewLessonService instantiates LessonService.
func NewLessonService(lessons lessonRepository, groups groupRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerSchedulingValidators(validate)
	return &LessonService{
		lessons:    lessons,
		groups:     groups,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		groupLocks: newKeyedMutex(),
	}
}

// List returns lessons with pagination metadata.
func (s *LessonService) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	lessons, total, err := s.lessons.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return lessons, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a lesson by id.
func (s *LessonService) Get(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// Create stores a lesson after the conflict check.
func (s *LessonService) Create(ctx context.Context, req LessonRequest) (*models.Lesson, error) {
	lesson, err := s.buildLesson(ctx, req)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.ensureNoConflict(ctx, lesson); err != nil {
		return nil, err
	}
	if err := s.lessons.Create(ctx, &lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	s.invalidateTimetables(ctx)
	return &lesson, nil
}

// Update reschedules a lesson. The lesson itself is excluded from the check.
func (s *LessonService) Update(ctx context.Context, id string, req LessonRequest) (*models.Lesson, error) {
	updated, err := s.buildLesson(ctx, req)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	if err := s.ensureNoConflict(ctx, updated); err != nil {
		return nil, err
	}
	if err := s.lessons.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	s.invalidateTimetables(ctx)
	return &updated, nil
}

// Delete removes a lesson.
func (s *LessonService) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.lessons.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	s.invalidateTimetables(ctx)
	return nil
}

// Check runs the conflict check without writing and reports every lesson the
// slot collides with. ignoreID excludes the lesson being edited. An empty
// result means the slot is free.
func (s *LessonService) Check(ctx context.Context, req LessonRequest, ignoreID string) ([]models.LessonConflict, error) {
	lesson, err := s.buildLesson(ctx, req)
	if err != nil {
		return nil, err
	}
	lesson.ID = ignoreID
	existing, err := s.sameDayLessons(ctx, lesson, nil)
	if err != nil {
		return nil, err
	}
	conflicts, err := scheduling.FindConflicts(scheduling.CandidateFromLesson(lesson), existing)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson time")
	}
	described := make([]models.LessonConflict, 0, len(conflicts))
	for _, conflict := range conflicts {
		described = append(described, conflict.Describe())
	}
	return described, nil
}

// Import stores lessons without the conflict check. Overlaps with existing
// lessons or earlier items are reported in the result and logged.
func (s *LessonService) Import(ctx context.Context, req ImportLessonsRequest) (*ImportLessonsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson import payload")
	}

	lessons := make([]models.Lesson, 0, len(req.Items))
	for i, item := range req.Items {
		lesson, err := s.buildLesson(ctx, item)
		if err != nil {
			appErr := appErrors.FromError(err)
			return nil, appErrors.Wrap(err, appErr.Code, appErr.Status, fmt.Sprintf("item %d: %s", i, appErr.Message))
		}
		lessons = append(lessons, lesson)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var overlaps []LessonOverlap
	for i, lesson := range lessons {
		conflict, err := s.findConflict(ctx, lesson, lessons[:i])
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			overlaps = append(overlaps, LessonOverlap{Index: i, Lesson: lesson, Conflict: conflict.Describe()})
		}
	}

	if err := s.lessons.BulkCreate(ctx, lessons); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import lessons")
	}
	// Report ids assigned on insert.
	for i := range overlaps {
		overlaps[i].Lesson = lessons[overlaps[i].Index]
	}

	if len(overlaps) > 0 {
		s.logger.Warn("imported lessons overlap existing bookings", zap.Int("overlaps", len(overlaps)), zap.Int("imported", len(lessons)))
		s.metrics.RecordImportOverlaps(len(overlaps))
	}
	s.invalidateTimetables(ctx)
	return &ImportLessonsResult{Created: lessons, Overlaps: overlaps}, nil
}

// ProjectGroup creates the group's lessons on every class date in the range.
// Dates that conflict, including dates the group already has a lesson at that
// time, are skipped when PartialOnError is set and abort the request otherwise.
func (s *LessonService) ProjectGroup(ctx context.Context, groupID string, req ProjectLessonsRequest) (*ProjectLessonsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid projection payload")
	}
	from, _ := scheduling.ParseDate(req.From)
	to, _ := scheduling.ParseDate(req.To)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > maxProjectionDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("projection range exceeds %d days", maxProjectionDays))
	}

	unlock := s.groupLocks.Lock(groupID)
	defer unlock()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := scheduling.NewInterval(group.StartTime, group.EndTime); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "group has no valid lesson time")
	}

	set, parsed := groupWeekdays(*group, s.logger, s.metrics)
	projected := scheduling.ProjectLessons(*group, set, scheduling.DatesBetween(from, to))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result := &ProjectLessonsResult{Weekdays: set, Fallback: !parsed, Created: []models.Lesson{}}
	var accepted []models.Lesson
	for _, lesson := range projected {
		conflict, err := s.findConflict(ctx, lesson, accepted)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			s.metrics.RecordConflict(conflict.Dimension)
			if !req.PartialOnError {
				return nil, s.wrapConflict(*conflict)
			}
			result.Conflicts = append(result.Conflicts, conflict.Describe())
			continue
		}
		accepted = append(accepted, lesson)
	}

	if len(accepted) > 0 {
		if err := s.lessons.BulkCreate(ctx, accepted); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create projected lessons")
		}
		s.invalidateTimetables(ctx)
	}
	result.Created = append(result.Created, accepted...)
	s.logger.Info("group lessons projected",
		zap.String("group_id", group.ID),
		zap.Stringer("weekdays", set),
		zap.Int("created", len(accepted)),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return result, nil
}

func (s *LessonService) buildLesson(ctx context.Context, req LessonRequest) (models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Lesson{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	interval, err := scheduling.NewInterval(req.StartTime, req.EndTime)
	if err != nil {
		return models.Lesson{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "end time must be after start time")
	}
	group, err := s.loadGroup(ctx, req.GroupID)
	if err != nil {
		return models.Lesson{}, err
	}
	date, _ := scheduling.ParseDate(req.Date)

	lesson := models.Lesson{
		GroupID:   group.ID,
		Date:      date,
		StartTime: interval.Start.String(),
		EndTime:   interval.End.String(),
		TeacherID: strings.TrimSpace(req.TeacherID),
		Notes:     req.Notes,
	}
	if lesson.TeacherID == "" {
		lesson.TeacherID = group.TeacherID
	}
	roomID, lessonType := req.RoomID, models.LessonType(strings.ToLower(req.Type))
	if roomID == nil && lessonType == "" {
		roomID, lessonType = group.RoomID, group.Type
	}
	lesson.RoomID, lesson.Type = models.NormalizeRoom(roomID, lessonType)
	return lesson, nil
}

func (s *LessonService) loadGroup(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// findConflict checks the lesson against the stored lessons of its date plus
// pending lessons not yet written.
func (s *LessonService) findConflict(ctx context.Context, lesson models.Lesson, pending []models.Lesson) (*scheduling.Conflict, error) {
	existing, err := s.sameDayLessons(ctx, lesson, pending)
	if err != nil {
		return nil, err
	}
	conflict, err := scheduling.FindConflict(scheduling.CandidateFromLesson(lesson), existing)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson time")
	}
	return conflict, nil
}

func (s *LessonService) sameDayLessons(ctx context.Context, lesson models.Lesson, pending []models.Lesson) ([]models.Lesson, error) {
	existing, err := s.lessons.ListByDate(ctx, lesson.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson conflicts")
	}
	for _, p := range pending {
		if scheduling.SameDay(p.Date, lesson.Date) {
			existing = append(existing, p)
		}
	}
	return existing, nil
}

func (s *LessonService) ensureNoConflict(ctx context.Context, lesson models.Lesson) error {
	conflict, err := s.findConflict(ctx, lesson, nil)
	if err != nil {
		return err
	}
	if conflict == nil {
		return nil
	}
	s.metrics.RecordConflict(conflict.Dimension)
	return s.wrapConflict(*conflict)
}

func (s *LessonService) wrapConflict(conflict scheduling.Conflict) error {
	var message string
	switch conflict.Dimension {
	case models.ConflictGroup:
		message = "group already has a lesson at this time"
	case models.ConflictTeacher:
		message = "teacher already booked at this time"
	default:
		message = "room already booked at this time"
	}
	domainErr := &models.LessonConflictError{Message: message, Conflict: conflict.Describe()}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("lesson conflict: %s", message)).
		WithDetails(domainErr.Conflict)
}

func (s *LessonService) invalidateTimetables(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, timetableCachePattern); err != nil {
		s.logger.Warn("timetable cache invalidation failed", zap.Error(err))
	}
}
