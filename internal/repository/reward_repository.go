package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hearthschool/hub-api/internal/models"
)

// RewardRepository persists reward profiles and their event ledger.
type RewardRepository struct {
	db *sqlx.DB
}

// NewRewardRepository instantiates a reward repository.
func NewRewardRepository(db *sqlx.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

const rewardProfileColumns = `id, student_id, xp, coins, streak_days, last_activity_at, created_at, updated_at`

// FindProfile loads a student's reward profile.
func (r *RewardRepository) FindProfile(ctx context.Context, studentID string) (*models.RewardProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM reward_profiles WHERE student_id = $1 LIMIT 1`, rewardProfileColumns)
	var profile models.RewardProfile
	if err := r.db.GetContext(ctx, &profile, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reward profile: %w", err)
	}
	return &profile, nil
}

// SaveEvent appends a ledger entry and writes the updated profile snapshot
// in one transaction.
func (r *RewardRepository) SaveEvent(ctx context.Context, event *models.RewardEvent, profile *models.RewardProfile) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reward tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const eventQuery = `INSERT INTO reward_events (id, student_id, kind, amount, reason, created_at) VALUES (:id, :student_id, :kind, :amount, :reason, :created_at)`
	if _, err = tx.NamedExecContext(ctx, eventQuery, event); err != nil {
		return fmt.Errorf("insert reward event: %w", err)
	}

	const profileQuery = `INSERT INTO reward_profiles (id, student_id, xp, coins, streak_days, last_activity_at, created_at, updated_at)
		VALUES (:id, :student_id, :xp, :coins, :streak_days, :last_activity_at, :created_at, :updated_at)
		ON CONFLICT (student_id)
		DO UPDATE SET xp = EXCLUDED.xp, coins = EXCLUDED.coins, streak_days = EXCLUDED.streak_days, last_activity_at = EXCLUDED.last_activity_at, updated_at = EXCLUDED.updated_at`
	if _, err = tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("upsert reward profile: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reward tx: %w", err)
	}
	return nil
}

// HasEventSince reports whether the student has a ledger entry with the
// given reason at or after the provided instant.
func (r *RewardRepository) HasEventSince(ctx context.Context, studentID, reason string, since time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM reward_events WHERE student_id = $1 AND reason = $2 AND created_at >= $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, reason, since); err != nil {
		return false, fmt.Errorf("check reward event: %w", err)
	}
	return exists, nil
}

// ListEvents returns the most recent ledger entries for a student.
func (r *RewardRepository) ListEvents(ctx context.Context, studentID string, limit int) ([]models.RewardEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, student_id, kind, amount, reason, created_at FROM reward_events WHERE student_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var events []models.RewardEvent
	if err := r.db.SelectContext(ctx, &events, query, studentID); err != nil {
		return nil, fmt.Errorf("list reward events: %w", err)
	}
	return events, nil
}
