package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hearthschool/hub-api/internal/models"
)

// CoursePlatformRepository handles per-student platform assignments.
type CoursePlatformRepository struct {
	db *sqlx.DB
}

// NewCoursePlatformRepository instantiates a course platform repository.
func NewCoursePlatformRepository(db *sqlx.DB) *CoursePlatformRepository {
	return &CoursePlatformRepository{db: db}
}

const coursePlatformColumns = `id, student_term_plan_id, subject, course, platform_url, platform_name, platform_help, notes, created_at, updated_at`

// ListByStudentTermPlanIDs returns assignments for the given join-row set.
// An empty set short-circuits without querying.
func (r *CoursePlatformRepository) ListByStudentTermPlanIDs(ctx context.Context, ids []string) ([]models.CoursePlatform, error) {
	if len(ids) == 0 {
		return []models.CoursePlatform{}, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM student_course_platforms WHERE student_term_plan_id IN (?) ORDER BY subject ASC, course ASC`, coursePlatformColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build assignment query: %w", err)
	}
	query = r.db.Rebind(query)

	var assignments []models.CoursePlatform
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list course platforms: %w", err)
	}
	return assignments, nil
}

// FindByID loads an assignment by identifier.
func (r *CoursePlatformRepository) FindByID(ctx context.Context, id string) (*models.CoursePlatform, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_course_platforms WHERE id = $1`, coursePlatformColumns)
	var assignment models.CoursePlatform
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course platform by id: %w", err)
	}
	return &assignment, nil
}

// Upsert writes an assignment keyed by (student_term_plan_id, subject,
// course), so repeated saves for the same slot overwrite rather than
// accumulate.
func (r *CoursePlatformRepository) Upsert(ctx context.Context, assignment *models.CoursePlatform) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	assignment.Subject = strings.ToLower(assignment.Subject)
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO student_course_platforms (id, student_term_plan_id, subject, course, platform_url, platform_name, platform_help, notes, created_at, updated_at)
		VALUES (:id, :student_term_plan_id, :subject, :course, :platform_url, :platform_name, :platform_help, :notes, :created_at, :updated_at)
		ON CONFLICT (student_term_plan_id, subject, course)
		DO UPDATE SET platform_url = EXCLUDED.platform_url, platform_name = EXCLUDED.platform_name, platform_help = EXCLUDED.platform_help, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("upsert course platform: %w", err)
	}
	return nil
}

// UpdateChecked performs a check-and-set update: the row is only written
// when its updated_at still matches expectedUpdatedAt. Returns false when
// the row was modified concurrently.
func (r *CoursePlatformRepository) UpdateChecked(ctx context.Context, assignment *models.CoursePlatform, expectedUpdatedAt time.Time) (bool, error) {
	assignment.Subject = strings.ToLower(assignment.Subject)
	newUpdatedAt := time.Now().UTC()

	const query = `UPDATE student_course_platforms SET platform_url = $2, platform_name = $3, platform_help = $4, notes = $5, updated_at = $6 WHERE id = $1 AND updated_at = $7`
	res, err := r.db.ExecContext(ctx, query, assignment.ID, assignment.PlatformURL, assignment.PlatformName, assignment.PlatformHelp, assignment.Notes, newUpdatedAt, expectedUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("update course platform: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update course platform result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	assignment.UpdatedAt = newUpdatedAt
	return true, nil
}

// Delete removes an assignment permanently.
func (r *CoursePlatformRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM student_course_platforms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course platform: %w", err)
	}
	return nil
}
