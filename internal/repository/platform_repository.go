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

// PlatformRepository handles the curated learning-platform catalog.
type PlatformRepository struct {
	db *sqlx.DB
}

// NewPlatformRepository instantiates a platform repository.
func NewPlatformRepository(db *sqlx.DB) *PlatformRepository {
	return &PlatformRepository{db: db}
}

const platformColumns = `id, name, url, subject, type, description, created_at, updated_at`

// ListBySubject returns subject-specific entries for an exact, lowercased
// subject match, ordered by name.
func (r *PlatformRepository) ListBySubject(ctx context.Context, subject string) ([]models.Platform, error) {
	query := fmt.Sprintf(`SELECT %s FROM platforms WHERE subject = $1 ORDER BY name ASC`, platformColumns)
	var platforms []models.Platform
	if err := r.db.SelectContext(ctx, &platforms, query, strings.ToLower(subject)); err != nil {
		return nil, fmt.Errorf("list platforms by subject: %w", err)
	}
	return platforms, nil
}

// ListGeneral returns the general-purpose fallback entries, ordered by name.
func (r *PlatformRepository) ListGeneral(ctx context.Context) ([]models.Platform, error) {
	query := fmt.Sprintf(`SELECT %s FROM platforms WHERE type = $1 ORDER BY name ASC`, platformColumns)
	var platforms []models.Platform
	if err := r.db.SelectContext(ctx, &platforms, query, models.PlatformTypeGeneral); err != nil {
		return nil, fmt.Errorf("list general platforms: %w", err)
	}
	return platforms, nil
}

// List returns catalog entries matching provided filters.
func (r *PlatformRepository) List(ctx context.Context, filter models.PlatformFilter) ([]models.Platform, int, error) {
	base := "FROM platforms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Subject))
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"subject":    true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", platformColumns, base, sortBy, order, size, offset)

	var platforms []models.Platform
	if err := r.db.SelectContext(ctx, &platforms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list platforms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count platforms: %w", err)
	}

	return platforms, total, nil
}

// FindByID loads a catalog entry by identifier.
func (r *PlatformRepository) FindByID(ctx context.Context, id string) (*models.Platform, error) {
	query := fmt.Sprintf(`SELECT %s FROM platforms WHERE id = $1`, platformColumns)
	var platform models.Platform
	if err := r.db.GetContext(ctx, &platform, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find platform by id: %w", err)
	}
	return &platform, nil
}

// Create inserts a new catalog entry. Subjects are stored lowercased so the
// suggestion lookup can match exactly.
func (r *PlatformRepository) Create(ctx context.Context, platform *models.Platform) error {
	if platform.ID == "" {
		platform.ID = uuid.NewString()
	}
	platform.Subject = strings.ToLower(platform.Subject)
	now := time.Now().UTC()
	if platform.CreatedAt.IsZero() {
		platform.CreatedAt = now
	}
	platform.UpdatedAt = now

	const query = `INSERT INTO platforms (id, name, url, subject, type, description, created_at, updated_at) VALUES (:id, :name, :url, :subject, :type, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, platform); err != nil {
		return fmt.Errorf("create platform: %w", err)
	}
	return nil
}

// Update modifies an existing catalog entry.
func (r *PlatformRepository) Update(ctx context.Context, platform *models.Platform) error {
	platform.Subject = strings.ToLower(platform.Subject)
	platform.UpdatedAt = time.Now().UTC()
	const query = `UPDATE platforms SET name = :name, url = :url, subject = :subject, type = :type, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, platform); err != nil {
		return fmt.Errorf("update platform: %w", err)
	}
	return nil
}

// Delete removes a catalog entry permanently.
func (r *PlatformRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM platforms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete platform: %w", err)
	}
	return nil
}
