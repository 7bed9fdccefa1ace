package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthschool/hub-api/internal/models"
)

func platformRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "url", "subject", "type", "description", "created_at", "updated_at"})
}

func TestPlatformRepositoryListBySubjectLowercases(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewPlatformRepository(db)

	rows := platformRows().
		AddRow("p1", "Khan Academy", "https://khanacademy.org", "math", "subject", "Free lessons", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, url, subject, type, description, created_at, updated_at FROM platforms WHERE subject = $1 ORDER BY name ASC")).
		WithArgs("math").
		WillReturnRows(rows)

	platforms, err := repo.ListBySubject(context.Background(), "Math")
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.Equal(t, "Khan Academy", platforms[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlatformRepositoryListGeneral(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewPlatformRepository(db)

	rows := platformRows().
		AddRow("p1", "Outschool", "https://outschool.com", "", "general", "Live classes", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, url, subject, type, description, created_at, updated_at FROM platforms WHERE type = $1 ORDER BY name ASC")).
		WithArgs(models.PlatformTypeGeneral).
		WillReturnRows(rows)

	platforms, err := repo.ListGeneral(context.Background())
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.Equal(t, models.PlatformTypeGeneral, platforms[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlatformRepositoryCreateStoresLowercaseSubject(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewPlatformRepository(db)

	mock.ExpectExec("INSERT INTO platforms").
		WillReturnResult(sqlmock.NewResult(1, 1))

	platform := &models.Platform{Name: "IXL", URL: "https://ixl.com", Subject: "Math", Type: models.PlatformTypeSubject}
	err := repo.Create(context.Background(), platform)
	require.NoError(t, err)
	assert.Equal(t, "math", platform.Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}
