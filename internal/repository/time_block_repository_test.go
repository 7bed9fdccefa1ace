package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeBlockRepositoryListOrdersByStartTime(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewTimeBlockRepository(db)

	rows := sqlmock.NewRows([]string{"id", "term_plan_id", "weekday", "start_time", "end_time", "activity_name", "created_at", "updated_at"}).
		AddRow("block-1", "plan-1", 1, "09:00", "09:30", "Math", time.Now(), time.Now()).
		AddRow("block-2", "plan-1", 1, "09:30", "10:00", "Reading", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, term_plan_id, weekday, start_time, end_time, activity_name, created_at, updated_at FROM time_blocks WHERE term_plan_id = $1 ORDER BY weekday ASC, start_time ASC")).
		WithArgs("plan-1").
		WillReturnRows(rows)

	blocks, err := repo.ListByTermPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.LessOrEqual(t, blocks[0].StartTime, blocks[1].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeBlockRepositoryUpdateActivity(t *testing.T) {
	db, mock, cleanup := newPlanMock(t)
	defer cleanup()
	repo := NewTimeBlockRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE time_blocks SET activity_name = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("block-1", "Science", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateActivity(context.Background(), "block-1", "Science")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
