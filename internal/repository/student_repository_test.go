package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentRepositoryListByGroup(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, group_id, name, phone FROM students WHERE group_id = $1 ORDER BY name ASC")).
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "name", "phone"}).
			AddRow("s-1", "g-1", "Aziza", "+998901112233").
			AddRow("s-2", "g-1", "Bekzod", "+998907778899"))

	students, err := repo.ListByGroup(context.Background(), "g-1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Aziza", students[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM groups WHERE id = $1")).
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "course_id", "teacher_id", "room_id", "schedule", "start_time", "end_time", "type"}).
			AddRow("g-1", "English A1", "english", "t-1", "r-1", "Dush-Chors-Juma", "18:00", "19:30", "offline"))

	group, err := repo.FindByID(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, "Dush-Chors-Juma", group.Schedule)
	assert.NoError(t, mock.ExpectationsWereMet())
}
