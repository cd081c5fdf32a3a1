package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/newuzbdev/edunite/internal/models"
)

const lessonColumns = "id, group_id, date, start_time, end_time, teacher_id, room_id, type, notes, created_at, updated_at"

// LessonRepository provides persistence for dated lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// List returns lessons with optional filtering and pagination.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	base := "FROM lessons WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, start_time ASC, id ASC LIMIT %d OFFSET %d", lessonColumns, base, size, offset)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	return lessons, total, nil
}

// ListByDate returns every lesson held on the given day, used by conflict checks.
func (r *LessonRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE date = $1 ORDER BY start_time ASC, id ASC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, date); err != nil {
		return nil, fmt.Errorf("list lessons by date: %w", err)
	}
	return lessons, nil
}

// ListBetween returns every lesson in the inclusive date range.
func (r *LessonRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE date >= $1 AND date <= $2 ORDER BY date ASC, start_time ASC, id ASC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, from, to); err != nil {
		return nil, fmt.Errorf("list lessons between: %w", err)
	}
	return lessons, nil
}

// FindByID loads a lesson by id.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

const insertLessonQuery = `INSERT INTO lessons (id, group_id, date, start_time, end_time, teacher_id, room_id, type, notes, created_at, updated_at) VALUES (:id, :group_id, :date, :start_time, :end_time, :teacher_id, :room_id, :type, :notes, :created_at, :updated_at)`

// Create stores a new lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	stampLesson(lesson, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertLessonQuery, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// BulkCreate inserts many lessons within a transaction.
func (r *LessonRepository) BulkCreate(ctx context.Context, lessons []models.Lesson) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create lessons: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range lessons {
		stampLesson(&lessons[i], now)
		if _, err = sqlx.NamedExecContext(ctx, tx, insertLessonQuery, &lessons[i]); err != nil {
			return fmt.Errorf("bulk insert lesson: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create lessons: %w", err)
	}
	return nil
}

// Update modifies a lesson record.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET group_id = :group_id, date = :date, start_time = :start_time, end_time = :end_time, teacher_id = :teacher_id, room_id = :room_id, type = :type, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson by id.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

func stampLesson(lesson *models.Lesson, now time.Time) {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
