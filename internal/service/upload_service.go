package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/storage"
)

type uploadRepository interface {
	Create(ctx context.Context, upload *models.WorkUpload) error
	FindByID(ctx context.Context, id string) (*models.WorkUpload, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.WorkUpload, error)
	Delete(ctx context.Context, id string) error
}

// UploadConfig bounds what students may upload.
type UploadConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// WorkUploadResult pairs the stored record with a signed download URL.
type WorkUploadResult struct {
	Upload    models.WorkUpload `json:"upload"`
	SignedURL string            `json:"signed_url"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// UploadService stores completed-work files and hands out signed download
// tokens so the files are never served from an open path.
type UploadService struct {
	repo     uploadRepository
	students planStudentReader
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	config   UploadConfig
	logger   *zap.Logger
}

// NewUploadService constructs an UploadService.
func NewUploadService(repo uploadRepository, students planStudentReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, config UploadConfig, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{repo: repo, students: students, store: store, signer: signer, config: config, logger: logger}
}

// Save validates and stores an uploaded file for a student.
func (s *UploadService) Save(ctx context.Context, actor Actor, studentID string, timeBlockID *string, filename, contentType string, size int64, r io.Reader) (*WorkUploadResult, error) {
	if err := s.authorize(ctx, actor, studentID); err != nil {
		return nil, err
	}

	if s.config.MaxFileSizeBytes > 0 && size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("content type %q is not allowed", contentType))
	}

	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, appErrors.Clone(appErrors.ErrValidation, "filename must not be empty")
	}

	id := uuid.NewString()
	storedName := fmt.Sprintf("%s/%s_%s", studentID, id, filename)
	path, err := s.store.SaveStream(storedName, io.LimitReader(r, s.config.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	upload := &models.WorkUpload{
		ID:          id,
		StudentID:   studentID,
		TimeBlockID: timeBlockID,
		Filename:    filename,
		StoragePath: path,
		ContentType: contentType,
		SizeBytes:   size,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		if removeErr := s.store.Delete(storedName); removeErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", storedName), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upload")
	}

	return s.withSignedURL(upload)
}

// List returns a student's uploads, each with a fresh signed URL.
func (s *UploadService) List(ctx context.Context, actor Actor, studentID string) ([]WorkUploadResult, error) {
	if err := s.authorize(ctx, actor, studentID); err != nil {
		return nil, err
	}

	uploads, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list uploads")
	}

	results := make([]WorkUploadResult, 0, len(uploads))
	for _, upload := range uploads {
		result, err := s.withSignedURL(&upload)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// OpenSigned resolves a signed token to the stored file for download.
func (s *UploadService) OpenSigned(ctx context.Context, token string) (*models.WorkUpload, *os.File, error) {
	uploadID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	upload, err := s.repo.FindByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return upload, file, nil
}

// Delete removes an upload record and its stored file.
func (s *UploadService) Delete(ctx context.Context, actor Actor, id string) error {
	upload, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload")
	}
	if err := s.authorize(ctx, actor, upload.StudentID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete upload")
	}
	if err := s.store.Delete(s.relPath(upload)); err != nil {
		s.logger.Warn("failed to remove stored file", zap.String("upload_id", id), zap.Error(err))
	}
	return nil
}

func (s *UploadService) withSignedURL(upload *models.WorkUpload) (*WorkUploadResult, error) {
	token, expiresAt, err := s.signer.Generate(upload.ID, s.relPath(upload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &WorkUploadResult{Upload: *upload, SignedURL: token, ExpiresAt: expiresAt}, nil
}

func (s *UploadService) relPath(upload *models.WorkUpload) string {
	return fmt.Sprintf("%s/%s_%s", upload.StudentID, upload.ID, upload.Filename)
}

func (s *UploadService) mimeAllowed(contentType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func (s *UploadService) authorize(ctx context.Context, actor Actor, studentID string) error {
	if actor.CanActForStudent(studentID) {
		return nil
	}
	if actor.Role != models.RoleParent {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to act for this student")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ParentID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "student belongs to another parent")
	}
	return nil
}
