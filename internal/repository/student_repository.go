package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/newuzbdev/edunite/internal/models"
)

// StudentRepository reads group rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByGroup returns the students of a group ordered by name.
func (r *StudentRepository) ListByGroup(ctx context.Context, groupID string) ([]models.Student, error) {
	const query = `SELECT id, group_id, name, phone FROM students WHERE group_id = $1 ORDER BY name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, groupID); err != nil {
		return nil, fmt.Errorf("list students by group: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, group_id, name, phone FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
