package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/newuzbdev/edunite/internal/models"
)

// AttendanceRepository stores one status per (student, date).
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Get loads the record for a student on a date. A missing key yields sql.ErrNoRows.
func (r *AttendanceRepository) Get(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	const query = `SELECT student_id, date, status, updated_at FROM attendance_records WHERE student_id = $1 AND date = $2`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, date); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert writes the record, replacing any existing status for the key.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO attendance_records (student_id, date, status, updated_at) VALUES (:student_id, :date, :status, :updated_at)
        ON CONFLICT (student_id, date) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// Delete clears the key so the cell reads as unset.
func (r *AttendanceRepository) Delete(ctx context.Context, studentID string, date time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE student_id = $1 AND date = $2`, studentID, date); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

// ListByStudents returns the records of the given students in the inclusive date range.
func (r *AttendanceRepository) ListByStudents(ctx context.Context, studentIDs []string, from, to time.Time) ([]models.AttendanceRecord, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT student_id, date, status, updated_at FROM attendance_records WHERE student_id = ANY($1) AND date >= $2 AND date <= $3 ORDER BY student_id ASC, date ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(studentIDs), from, to); err != nil {
		return nil, fmt.Errorf("list attendance by students: %w", err)
	}
	return records, nil
}
