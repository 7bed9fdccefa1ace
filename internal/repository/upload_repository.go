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

// UploadRepository persists metadata for uploaded student work.
type UploadRepository struct {
	db *sqlx.DB
}

// NewUploadRepository instantiates an upload repository.
func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

const uploadColumns = `id, student_id, time_block_id, filename, storage_path, content_type, size_bytes, created_at`

// Create inserts a new upload record.
func (r *UploadRepository) Create(ctx context.Context, upload *models.WorkUpload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO work_uploads (id, student_id, time_block_id, filename, storage_path, content_type, size_bytes, created_at) VALUES (:id, :student_id, :time_block_id, :filename, :storage_path, :content_type, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, upload); err != nil {
		return fmt.Errorf("create work upload: %w", err)
	}
	return nil
}

// FindByID loads an upload record by identifier.
func (r *UploadRepository) FindByID(ctx context.Context, id string) (*models.WorkUpload, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_uploads WHERE id = $1`, uploadColumns)
	var upload models.WorkUpload
	if err := r.db.GetContext(ctx, &upload, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find work upload by id: %w", err)
	}
	return &upload, nil
}

// ListByStudent returns a student's uploads, newest first.
func (r *UploadRepository) ListByStudent(ctx context.Context, studentID string) ([]models.WorkUpload, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_uploads WHERE student_id = $1 ORDER BY created_at DESC`, uploadColumns)
	var uploads []models.WorkUpload
	if err := r.db.SelectContext(ctx, &uploads, query, studentID); err != nil {
		return nil, fmt.Errorf("list work uploads: %w", err)
	}
	return uploads, nil
}

// Delete removes an upload record permanently.
func (r *UploadRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM work_uploads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete work upload: %w", err)
	}
	return nil
}
