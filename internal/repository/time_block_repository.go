package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hearthschool/hub-api/internal/models"
)

// TimeBlockRepository handles reads and label edits for scheduled blocks.
// Block creation happens inside TermPlanRepository transactions.
type TimeBlockRepository struct {
	db *sqlx.DB
}

// NewTimeBlockRepository instantiates a time block repository.
func NewTimeBlockRepository(db *sqlx.DB) *TimeBlockRepository {
	return &TimeBlockRepository{db: db}
}

const timeBlockColumns = `id, term_plan_id, weekday, start_time, end_time, activity_name, created_at, updated_at`

// ListByTermPlan returns all blocks for a plan in non-decreasing start_time
// order within each weekday.
func (r *TimeBlockRepository) ListByTermPlan(ctx context.Context, termPlanID string) ([]models.TimeBlock, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_blocks WHERE term_plan_id = $1 ORDER BY weekday ASC, start_time ASC`, timeBlockColumns)
	var blocks []models.TimeBlock
	if err := r.db.SelectContext(ctx, &blocks, query, termPlanID); err != nil {
		return nil, fmt.Errorf("list time blocks: %w", err)
	}
	return blocks, nil
}

// FindByID loads a time block by identifier.
func (r *TimeBlockRepository) FindByID(ctx context.Context, id string) (*models.TimeBlock, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_blocks WHERE id = $1`, timeBlockColumns)
	var block models.TimeBlock
	if err := r.db.GetContext(ctx, &block, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find time block by id: %w", err)
	}
	return &block, nil
}

// UpdateActivity renames the activity label on a block.
func (r *TimeBlockRepository) UpdateActivity(ctx context.Context, id, activityName string) error {
	const query = `UPDATE time_blocks SET activity_name = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, activityName, time.Now().UTC()); err != nil {
		return fmt.Errorf("update time block activity: %w", err)
	}
	return nil
}
