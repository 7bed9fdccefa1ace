package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthschool/hub-api/internal/models"
)

func TestCoursePlatformRepositoryEmptyIDSetSkipsQuery(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewCoursePlatformRepository(db)

	assignments, err := repo.ListByStudentTermPlanIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, assignments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoursePlatformRepositoryList(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewCoursePlatformRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_term_plan_id", "subject", "course", "platform_url", "platform_name", "platform_help", "notes", "created_at", "updated_at"}).
		AddRow("cp-1", "link-1", "math", "Algebra", "https://khanacademy.org", "Khan Academy", nil, "", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, student_term_plan_id, subject, course, platform_url, platform_name, platform_help, notes, created_at, updated_at FROM student_course_platforms WHERE student_term_plan_id IN").
		WithArgs("link-1", "link-2").
		WillReturnRows(rows)

	assignments, err := repo.ListByStudentTermPlanIDs(context.Background(), []string{"link-1", "link-2"})
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "math", assignments[0].Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoursePlatformRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewCoursePlatformRepository(db)

	mock.ExpectExec("INSERT INTO student_course_platforms").
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.CoursePlatform{StudentTermPlanID: "link-1", Subject: "Math", Course: "Algebra", PlatformURL: "https://ixl.com", PlatformName: "IXL"}
	err := repo.Upsert(context.Background(), assignment)
	require.NoError(t, err)
	assert.Equal(t, "math", assignment.Subject)
	assert.NotEmpty(t, assignment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoursePlatformRepositoryUpdateCheckedDetectsStaleWrite(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewCoursePlatformRepository(db)

	expected := time.Now().UTC().Add(-time.Minute)
	mock.ExpectExec("UPDATE student_course_platforms").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assignment := &models.CoursePlatform{ID: "cp-1", Subject: "math", Course: "Algebra", PlatformURL: "https://ixl.com"}
	ok, err := repo.UpdateChecked(context.Background(), assignment, expected)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
