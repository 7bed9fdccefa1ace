package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthschool/hub-api/internal/models"
)

func newPlanMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func planRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "parent_id", "name", "days_per_week", "start_time", "end_time", "block_length_minutes", "created_at", "updated_at"})
}

func TestTermPlanRepositoryFindLatestByStudent(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewTermPlanRepository(db)

	rows := planRows().AddRow("plan-2", "parent-1", "Fall", 3, "09:00", "12:00", 30, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT p.id, p.parent_id, p.name, p.days_per_week, p.start_time, p.end_time, p.block_length_minutes, p.created_at, p.updated_at FROM term_plans p JOIN student_term_plans stp ON stp.term_plan_id = p.id WHERE stp.student_id = $1 ORDER BY p.created_at DESC LIMIT 1")).
		WithArgs("student-1").
		WillReturnRows(rows)

	plan, err := repo.FindLatestByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-2", plan.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermPlanRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewTermPlanRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO term_plans").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_term_plans").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO time_blocks").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO time_blocks").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	plan := &models.TermPlan{ParentID: "parent-1", Name: "Fall", DaysPerWeek: 1, StartTime: "09:00", EndTime: "10:00", BlockLengthMinutes: 30}
	blocks := []models.TimeBlock{
		{Weekday: 1, StartTime: "09:00", EndTime: "09:30", ActivityName: "Study"},
		{Weekday: 1, StartTime: "09:30", EndTime: "10:00", ActivityName: "Study"},
	}
	err := repo.Create(context.Background(), plan, []string{"student-1"}, blocks)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, plan.ID, blocks[0].TermPlanID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermPlanRepositoryUpdateRegenerates(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewTermPlanRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE term_plans").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM time_blocks WHERE term_plan_id = $1")).
		WithArgs("plan-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO time_blocks").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	plan := &models.TermPlan{ID: "plan-1", ParentID: "parent-1", Name: "Fall", DaysPerWeek: 1, StartTime: "09:00", EndTime: "09:30", BlockLengthMinutes: 30}
	blocks := []models.TimeBlock{{Weekday: 1, StartTime: "09:00", EndTime: "09:30", ActivityName: "Study"}}
	err := repo.Update(context.Background(), plan, blocks, true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermPlanRepositoryStudentLinksScoped(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewTermPlanRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "term_plan_id", "created_at"}).
		AddRow("link-1", "student-1", "plan-1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, term_plan_id, created_at FROM student_term_plans WHERE term_plan_id = $1 AND student_id = $2")).
		WithArgs("plan-1", "student-1").
		WillReturnRows(rows)

	links, err := repo.StudentLinks(context.Background(), "plan-1", "student-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "link-1", links[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
