package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema creates the tables read and written by the postgres driver. Groups
// and students belong to the entity store; the tables are created here so a
// fresh database can be seeded for development.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS groups (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        course_id TEXT NOT NULL DEFAULT '',
        teacher_id TEXT NOT NULL DEFAULT '',
        room_id TEXT NULL,
        schedule TEXT NOT NULL DEFAULT '',
        start_time TEXT NOT NULL DEFAULT '',
        end_time TEXT NOT NULL DEFAULT '',
        type TEXT NOT NULL DEFAULT 'offline'
    )`,
	`CREATE TABLE IF NOT EXISTS students (
        id TEXT PRIMARY KEY,
        group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        phone TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS lessons (
        id TEXT PRIMARY KEY,
        group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
        date DATE NOT NULL,
        start_time TEXT NOT NULL,
        end_time TEXT NOT NULL,
        teacher_id TEXT NOT NULL,
        room_id TEXT NULL,
        type TEXT NOT NULL DEFAULT 'offline',
        notes TEXT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_date ON lessons (date)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_group_date ON lessons (group_id, date)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
        student_id TEXT NOT NULL,
        date DATE NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('present', 'late', 'absent', 'excused')),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (student_id, date)
    )`,
}

// EnsureSchema applies the schema inside one transaction.
func EnsureSchema(ctx context.Context, db *sqlx.DB) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range schema {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
