package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/export"
	"github.com/hearthschool/hub-api/pkg/jobs"
	"github.com/hearthschool/hub-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes schedule export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	Workers         int
	MaxRetries      int
}

type exportPayload struct {
	jobID      string
	termPlanID string
	format     models.ExportFormat
}

// ExportService renders weekly schedules to PDF or CSV in the background
// and serves them through signed download URLs.
type ExportService struct {
	plans  termPlanRepository
	blocks timeBlockRepository
	store  fileStorage
	signer *storage.SignedURLSigner
	logger *zap.Logger
	cfg    ExportConfig

	queue *jobs.Queue

	mu      sync.RWMutex
	pending map[string]*models.ExportJob
}

// NewExportService constructs an ExportService and its worker queue. Call
// Start before enqueueing and Stop on shutdown.
func NewExportService(plans termPlanRepository, blocks timeBlockRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}

	s := &ExportService{
		plans:   plans,
		blocks:  blocks,
		store:   store,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		pending: make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("schedule-export", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers and the periodic file cleanup.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.cleanupLoop(ctx)
}

// Stop drains the export queue.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request enqueues a schedule export for the plan and returns the job
// descriptor the caller can poll.
func (s *ExportService) Request(ctx context.Context, actor Actor, termPlanID string, format models.ExportFormat) (*models.ExportJob, error) {
	if format != models.ExportFormatPDF && format != models.ExportFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	plan, err := s.plans.FindByID(ctx, termPlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term plan")
	}
	if !actor.IsAdmin() && plan.ParentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "term plan belongs to another parent")
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		TermPlanID:  plan.ID,
		Format:      format,
		Status:      models.ExportStatusPending,
		RequestedBy: actor.UserID,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.pending[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    string(format),
		Payload: exportPayload{jobID: job.ID, termPlanID: plan.ID, format: format},
	}); err != nil {
		s.mu.Lock()
		delete(s.pending, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	return job, nil
}

// Status returns the current state of an export job.
func (s *ExportService) Status(actor Actor, jobID string) (*models.ExportJob, error) {
	s.mu.RLock()
	job, ok := s.pending[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if !actor.IsAdmin() && job.RequestedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export belongs to another user")
	}
	snapshot := *job
	return &snapshot, nil
}

// OpenSigned resolves a download token to the rendered file. The token's
// resource ID must match a completed job so a signature minted for one file
// cannot outlive its job record.
func (s *ExportService) OpenSigned(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	s.mu.RLock()
	job, ok := s.pending[jobID]
	s.mu.RUnlock()
	if !ok || job.Status != models.ExportStatusCompleted {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return file, relPath, nil
}

// process renders and stores a single export. Runs on queue workers.
func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	err := s.render(ctx, payload)
	if err != nil && job.Attempt >= s.queue.MaxRetries() {
		s.complete(payload.jobID, func(j *models.ExportJob) {
			j.Status = models.ExportStatusFailed
			j.Error = err.Error()
		})
	}
	return err
}

func (s *ExportService) render(ctx context.Context, payload exportPayload) error {
	plan, err := s.plans.FindByID(ctx, payload.termPlanID)
	if err != nil {
		return fmt.Errorf("load term plan: %w", err)
	}
	blocks, err := s.blocks.ListByTermPlan(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("load time blocks: %w", err)
	}

	table := scheduleTable(plan, blocks)

	var data []byte
	switch payload.format {
	case models.ExportFormatCSV:
		data, err = export.RenderCSV(table)
	case models.ExportFormatPDF:
		data, err = export.RenderPDF(table)
	default:
		err = fmt.Errorf("unsupported format %s", payload.format)
	}
	if err != nil {
		return fmt.Errorf("render schedule: %w", err)
	}

	filename := fmt.Sprintf("schedule_%s_%s.%s", plan.ID, time.Now().UTC().Format("20060102T150405"), payload.format)
	relPath, err := s.store.Save(filename, data)
	if err != nil {
		return fmt.Errorf("store export: %w", err)
	}

	token, expiresAt, err := s.signer.Generate(payload.jobID, relPath)
	if err != nil {
		return fmt.Errorf("sign download url: %w", err)
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	now := time.Now().UTC()
	s.complete(payload.jobID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusCompleted
		j.DownloadURL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
		j.ExpiresAt = &expiresAt
		j.CompletedAt = &now
	})
	return nil
}

func (s *ExportService) complete(jobID string, mutate func(*models.ExportJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.pending[jobID]; ok {
		mutate(job)
	}
}

// evictExpiredJobs drops job records older than ResultTTL so the pending map
// stays bounded and Status stops advertising downloads whose files were
// already reaped.
func (s *ExportService) evictExpiredJobs(now time.Time) int {
	cutoff := now.Add(-s.cfg.ResultTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, job := range s.pending {
		if job.CreatedAt.Before(cutoff) {
			delete(s.pending, id)
			evicted++
		}
	}
	return evicted
}

func (s *ExportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.CleanupOlderThan(s.cfg.ResultTTL)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			evicted := s.evictExpiredJobs(time.Now().UTC())
			if len(removed) > 0 || evicted > 0 {
				s.logger.Info("removed expired exports", zap.Int("files", len(removed)), zap.Int("jobs", evicted))
			}
		}
	}
}

// scheduleTable flattens a plan's blocks into an exportable weekly table.
func scheduleTable(plan *models.TermPlan, blocks []models.TimeBlock) export.Table {
	headers := []string{"Day", "Start", "End", "Activity"}
	rows := make([]map[string]string, 0, len(blocks))
	for _, block := range blocks {
		rows = append(rows, map[string]string{
			"Day":      block.WeekdayLabel(),
			"Start":    block.StartTime,
			"End":      block.EndTime,
			"Activity": block.ActivityName,
		})
	}
	return export.Table{Title: fmt.Sprintf("Weekly Schedule - %s", plan.Name), Headers: headers, Rows: rows}
}
