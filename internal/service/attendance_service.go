package service

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
	appErrors "github.com/newuzbdev/edunite/pkg/errors"
)

// Attendance write sources, used as metric labels.
const (
	attendanceSourceToggle = "toggle"
	attendanceSourceSet    = "set"
	attendanceSourceImport = "import"
)

type attendanceRepository interface {
	Get(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	Delete(ctx context.Context, studentID string, date time.Time) error
	ListByStudents(ctx context.Context, studentIDs []string, from, to time.Time) ([]models.AttendanceRecord, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// PlaceholderSource supplies a stand-in status for cells that have no record.
// The second result is false when the source has nothing to offer.
type PlaceholderSource interface {
	Placeholder(studentID string, date time.Time) (models.AttendanceStatus, bool)
}

// HashPlaceholder derives a stable demo status from an FNV hash of the
// student id and date. Roughly six in ten cells read present, two late, one
// absent, and the rest stay unset.
type HashPlaceholder struct{}

// Placeholder implements PlaceholderSource.
func (HashPlaceholder) Placeholder(studentID string, date time.Time) (models.AttendanceStatus, bool) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(studentID + "|" + date.Format(scheduling.DateLayout)))
	switch v := h.Sum32() % 10; {
	case v < 6:
		return models.AttendancePresent, true
	case v < 8:
		return models.AttendanceLate, true
	case v < 9:
		return models.AttendanceAbsent, true
	default:
		return models.AttendanceNone, false
	}
}

// ToggleAttendanceRequest advances one cell along the toggle cycle.
type ToggleAttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,calendar_date"`
}

// SetAttendanceRequest writes any status to one cell.
type SetAttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,calendar_date"`
	Status    string `json:"status" validate:"attendance_status"`
}

// AttendanceService tracks one status per (student, date). Mutations of the
// same student are serialised.
type AttendanceService struct {
	repo        attendanceRepository
	students    studentLookup
	placeholder PlaceholderSource
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	locks       *keyedMutex
}

// NewAttendanceService constructs the attendance service. students may be nil
// to skip existence checks; placeholder may be nil to leave missing cells unset.
func NewAttendanceService(repo attendanceRepository, students studentLookup, placeholder PlaceholderSource, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerSchedulingValidators(validate)
	return &AttendanceService{
		repo:        repo,
		students:    students,
		placeholder: placeholder,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		locks:       newKeyedMutex(),
	}
}

// Get returns the recorded status, else the placeholder, else unset.
func (s *AttendanceService) Get(ctx context.Context, studentID string, date time.Time) (models.AttendanceLookup, error) {
	if strings.TrimSpace(studentID) == "" {
		return models.AttendanceLookup{}, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	date = scheduling.Day(date)
	record, err := s.repo.Get(ctx, studentID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.fallback(studentID, date), nil
		}
		return models.AttendanceLookup{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return models.AttendanceLookup{Status: record.Status, Origin: models.OriginRecorded}, nil
}

func (s *AttendanceService) fallback(studentID string, date time.Time) models.AttendanceLookup {
	if s.placeholder != nil {
		if status, ok := s.placeholder.Placeholder(studentID, date); ok {
			return models.AttendanceLookup{Status: status, Origin: models.OriginPlaceholder}
		}
	}
	return models.AttendanceLookup{Status: models.AttendanceNone, Origin: models.OriginUnset}
}

// Toggle advances the recorded status one step along none, present, late,
// absent and back to none. Excused toggles to none. Placeholders are ignored:
// the cycle always starts from what is stored.
func (s *AttendanceService) Toggle(ctx context.Context, studentID string, date time.Time) (models.AttendanceStatus, error) {
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return "", err
	}
	date = scheduling.Day(date)

	unlock := s.locks.Lock(studentID)
	defer unlock()

	current := models.AttendanceNone
	record, err := s.repo.Get(ctx, studentID, date)
	switch {
	case err == nil:
		current = record.Status
	case !errors.Is(err, sql.ErrNoRows):
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	next := current.Next()
	if err := s.write(ctx, studentID, date, next); err != nil {
		return "", err
	}
	s.metrics.RecordAttendanceWrite(attendanceSourceToggle, next)
	s.logger.Debug("attendance toggled",
		zap.String("student_id", studentID),
		zap.String("date", date.Format(scheduling.DateLayout)),
		zap.String("from", string(current)),
		zap.String("to", string(next)),
	)
	return next, nil
}

// Set writes any status. None clears the cell.
func (s *AttendanceService) Set(ctx context.Context, studentID string, date time.Time, status models.AttendanceStatus) error {
	return s.set(ctx, studentID, date, status, attendanceSourceSet)
}

func (s *AttendanceService) set(ctx context.Context, studentID string, date time.Time, status models.AttendanceStatus, source string) error {
	if status == "" {
		status = models.AttendanceNone
	}
	if !status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown attendance status "+string(status))
	}
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return err
	}
	date = scheduling.Day(date)

	unlock := s.locks.Lock(studentID)
	defer unlock()

	if err := s.write(ctx, studentID, date, status); err != nil {
		return err
	}
	s.metrics.RecordAttendanceWrite(source, status)
	return nil
}

// ToggleRequest validates and applies a toggle payload.
func (s *AttendanceService) ToggleRequest(ctx context.Context, req ToggleAttendanceRequest) (models.AttendanceStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, _ := scheduling.ParseDate(req.Date)
	return s.Toggle(ctx, req.StudentID, date)
}

// SetRequest validates and applies an administrative write.
func (s *AttendanceService) SetRequest(ctx context.Context, req SetAttendanceRequest) (models.AttendanceStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	status, _ := models.ParseAttendanceStatus(req.Status)
	date, _ := scheduling.ParseDate(req.Date)
	if err := s.Set(ctx, req.StudentID, date, status); err != nil {
		return "", err
	}
	return status, nil
}

func (s *AttendanceService) write(ctx context.Context, studentID string, date time.Time, status models.AttendanceStatus) error {
	if status == models.AttendanceNone {
		if err := s.repo.Delete(ctx, studentID, date); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear attendance")
		}
		return nil
	}
	record := &models.AttendanceRecord{StudentID: studentID, Date: date, Status: status}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	return nil
}

// Sheet returns the looked-up status of every student on every date, in the
// order of dates. It reads the store once for the whole range.
func (s *AttendanceService) Sheet(ctx context.Context, studentIDs []string, dates []time.Time) (map[string][]models.AttendanceLookup, error) {
	sheet := make(map[string][]models.AttendanceLookup, len(studentIDs))
	if len(studentIDs) == 0 {
		return sheet, nil
	}
	if len(dates) == 0 {
		for _, id := range studentIDs {
			sheet[id] = []models.AttendanceLookup{}
		}
		return sheet, nil
	}

	from, to := scheduling.Day(dates[0]), scheduling.Day(dates[0])
	for _, d := range dates[1:] {
		d = scheduling.Day(d)
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}

	records, err := s.repo.ListByStudents(ctx, studentIDs, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	recorded := make(map[string]models.AttendanceStatus, len(records))
	for _, r := range records {
		recorded[r.StudentID+"|"+r.Date.Format(scheduling.DateLayout)] = r.Status
	}

	for _, id := range studentIDs {
		row := make([]models.AttendanceLookup, len(dates))
		for i, d := range dates {
			if status, ok := recorded[id+"|"+d.Format(scheduling.DateLayout)]; ok {
				row[i] = models.AttendanceLookup{Status: status, Origin: models.OriginRecorded}
				continue
			}
			row[i] = s.fallback(id, scheduling.Day(d))
		}
		sheet[id] = row
	}
	return sheet, nil
}

// Recorded returns the stored records of the students between from and to,
// without placeholders.
func (s *AttendanceService) Recorded(ctx context.Context, studentIDs []string, from, to time.Time) ([]models.AttendanceRecord, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	records, err := s.repo.ListByStudents(ctx, studentIDs, scheduling.Day(from), scheduling.Day(to))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return records, nil
}

// StatsFor folds the student's statuses over the class dates. Nothing is stored.
func (s *AttendanceService) StatsFor(ctx context.Context, studentID string, classDates []time.Time) (models.AttendanceStats, error) {
	if strings.TrimSpace(studentID) == "" {
		return models.AttendanceStats{}, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	sheet, err := s.Sheet(ctx, []string{studentID}, classDates)
	if err != nil {
		return models.AttendanceStats{}, err
	}
	return foldStats(sheet[studentID]), nil
}

func foldStats(row []models.AttendanceLookup) models.AttendanceStats {
	var stats models.AttendanceStats
	for _, cell := range row {
		stats.Add(cell.Status)
	}
	return stats
}

func (s *AttendanceService) ensureStudent(ctx context.Context, studentID string) error {
	if strings.TrimSpace(studentID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if s.students == nil {
		return nil
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return nil
}
