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

// TermPlanRepository handles persistence for term plans and their
// student links.
type TermPlanRepository struct {
	db *sqlx.DB
}

// NewTermPlanRepository instantiates a term plan repository.
func NewTermPlanRepository(db *sqlx.DB) *TermPlanRepository {
	return &TermPlanRepository{db: db}
}

const termPlanColumns = `id, parent_id, name, days_per_week, start_time, end_time, block_length_minutes, created_at, updated_at`

// List returns term plans matching provided filters, newest first by default.
func (r *TermPlanRepository) List(ctx context.Context, filter models.TermPlanFilter) ([]models.TermPlan, int, error) {
	base := "FROM term_plans p WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ParentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.parent_id = $%d", len(args)+1))
		args = append(args, filter.ParentID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM student_term_plans stp WHERE stp.term_plan_id = p.id AND stp.student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY p.%s %s LIMIT %d OFFSET %d", prefixColumns("p", termPlanColumns), base, sortBy, order, size, offset)

	var plans []models.TermPlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list term plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count term plans: %w", err)
	}

	return plans, total, nil
}

// FindByID loads a term plan by identifier.
func (r *TermPlanRepository) FindByID(ctx context.Context, id string) (*models.TermPlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM term_plans WHERE id = $1`, termPlanColumns)
	var plan models.TermPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find term plan by id: %w", err)
	}
	return &plan, nil
}

// FindLatestByStudent returns the student's current plan: the one with the
// maximum created_at among plans linked to the student.
func (r *TermPlanRepository) FindLatestByStudent(ctx context.Context, studentID string) (*models.TermPlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM term_plans p JOIN student_term_plans stp ON stp.term_plan_id = p.id WHERE stp.student_id = $1 ORDER BY p.created_at DESC LIMIT 1`, prefixColumns("p", termPlanColumns))
	var plan models.TermPlan
	if err := r.db.GetContext(ctx, &plan, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find latest term plan for student: %w", err)
	}
	return &plan, nil
}

// Create inserts a plan, its student links, and its generated time blocks in
// a single transaction.
func (r *TermPlanRepository) Create(ctx context.Context, plan *models.TermPlan, studentIDs []string, blocks []models.TimeBlock) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create term plan tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const planQuery = `INSERT INTO term_plans (id, parent_id, name, days_per_week, start_time, end_time, block_length_minutes, created_at, updated_at) VALUES (:id, :parent_id, :name, :days_per_week, :start_time, :end_time, :block_length_minutes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, planQuery, plan); err != nil {
		return fmt.Errorf("create term plan: %w", err)
	}

	for _, studentID := range studentIDs {
		link := models.StudentTermPlan{ID: uuid.NewString(), StudentID: studentID, TermPlanID: plan.ID, CreatedAt: now}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO student_term_plans (id, student_id, term_plan_id, created_at) VALUES (:id, :student_id, :term_plan_id, :created_at)`, link); err != nil {
			return fmt.Errorf("link student to term plan: %w", err)
		}
	}

	if err = insertBlocks(ctx, tx, plan.ID, blocks, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create term plan tx: %w", err)
	}
	return nil
}

// Update modifies a plan and, when regenerate is set, replaces its time
// blocks wholesale inside the same transaction.
func (r *TermPlanRepository) Update(ctx context.Context, plan *models.TermPlan, blocks []models.TimeBlock, regenerate bool) error {
	now := time.Now().UTC()
	plan.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update term plan tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const planQuery = `UPDATE term_plans SET name = :name, days_per_week = :days_per_week, start_time = :start_time, end_time = :end_time, block_length_minutes = :block_length_minutes, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, planQuery, plan); err != nil {
		return fmt.Errorf("update term plan: %w", err)
	}

	if regenerate {
		if _, err = tx.ExecContext(ctx, `DELETE FROM time_blocks WHERE term_plan_id = $1`, plan.ID); err != nil {
			return fmt.Errorf("clear time blocks: %w", err)
		}
		if err = insertBlocks(ctx, tx, plan.ID, blocks, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update term plan tx: %w", err)
	}
	return nil
}

// LinkStudent attaches a student to an existing plan, ignoring duplicates.
func (r *TermPlanRepository) LinkStudent(ctx context.Context, termPlanID, studentID string) (*models.StudentTermPlan, error) {
	link := models.StudentTermPlan{ID: uuid.NewString(), StudentID: studentID, TermPlanID: termPlanID, CreatedAt: time.Now().UTC()}
	const query = `INSERT INTO student_term_plans (id, student_id, term_plan_id, created_at) VALUES (:id, :student_id, :term_plan_id, :created_at) ON CONFLICT (student_id, term_plan_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return nil, fmt.Errorf("link student to term plan: %w", err)
	}
	return &link, nil
}

// StudentLinks returns the join rows for a plan, optionally scoped to one
// student.
func (r *TermPlanRepository) StudentLinks(ctx context.Context, termPlanID, studentID string) ([]models.StudentTermPlan, error) {
	query := `SELECT id, student_id, term_plan_id, created_at FROM student_term_plans WHERE term_plan_id = $1`
	args := []interface{}{termPlanID}
	if studentID != "" {
		query += ` AND student_id = $2`
		args = append(args, studentID)
	}

	var links []models.StudentTermPlan
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, fmt.Errorf("list student term plan links: %w", err)
	}
	return links, nil
}

// FindLink loads a single student-plan join row by its identifier.
func (r *TermPlanRepository) FindLink(ctx context.Context, id string) (*models.StudentTermPlan, error) {
	const query = `SELECT id, student_id, term_plan_id, created_at FROM student_term_plans WHERE id = $1`
	var link models.StudentTermPlan
	if err := r.db.GetContext(ctx, &link, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student term plan link: %w", err)
	}
	return &link, nil
}

// CountAssignments returns the number of platform assignments referencing
// the plan through its student links.
func (r *TermPlanRepository) CountAssignments(ctx context.Context, termPlanID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_course_platforms scp JOIN student_term_plans stp ON stp.id = scp.student_term_plan_id WHERE stp.term_plan_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, termPlanID); err != nil {
		return 0, fmt.Errorf("count plan assignments: %w", err)
	}
	return count, nil
}

// Delete removes a plan along with its links and blocks.
func (r *TermPlanRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete term plan tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM time_blocks WHERE term_plan_id = $1`, id); err != nil {
		return fmt.Errorf("delete plan time blocks: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM student_term_plans WHERE term_plan_id = $1`, id); err != nil {
		return fmt.Errorf("delete plan student links: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM term_plans WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete term plan: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete term plan tx: %w", err)
	}
	return nil
}

func insertBlocks(ctx context.Context, tx *sqlx.Tx, termPlanID string, blocks []models.TimeBlock, now time.Time) error {
	const query = `INSERT INTO time_blocks (id, term_plan_id, weekday, start_time, end_time, activity_name, created_at, updated_at) VALUES (:id, :term_plan_id, :weekday, :start_time, :end_time, :activity_name, :created_at, :updated_at)`
	for i := range blocks {
		blocks[i].TermPlanID = termPlanID
		if blocks[i].ID == "" {
			blocks[i].ID = uuid.NewString()
		}
		blocks[i].CreatedAt = now
		blocks[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, blocks[i]); err != nil {
			return fmt.Errorf("insert time block: %w", err)
		}
	}
	return nil
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = prefix + "." + part
	}
	return strings.Join(parts, ", ")
}
