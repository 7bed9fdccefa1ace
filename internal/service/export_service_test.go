package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/storage"
)

func newExportService(t *testing.T, ttl time.Duration) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", ttl)
	return NewExportService(&mockPlanRepo{}, &mockBlockRepo{}, store, signer, ExportConfig{ResultTTL: ttl}, zap.NewNop())
}

func TestExportDownloadRequiresKnownJob(t *testing.T) {
	svc := newExportService(t, time.Hour)

	relPath, err := svc.store.Save("schedule.csv", []byte("Day,Start,End,Activity\n"))
	require.NoError(t, err)
	token, _, err := svc.signer.Generate("job-1", relPath)
	require.NoError(t, err)

	// A valid signature alone is not enough without a completed job record.
	_, _, err = svc.OpenSigned(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	svc.mu.Lock()
	svc.pending["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusCompleted, CreatedAt: time.Now().UTC()}
	svc.mu.Unlock()

	file, path, err := svc.OpenSigned(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, relPath, path)
}

func TestExportCleanupEvictsStaleJobs(t *testing.T) {
	svc := newExportService(t, time.Hour)
	now := time.Now().UTC()

	svc.mu.Lock()
	svc.pending["stale"] = &models.ExportJob{ID: "stale", Status: models.ExportStatusCompleted, RequestedBy: "parent-1", CreatedAt: now.Add(-2 * time.Hour)}
	svc.pending["fresh"] = &models.ExportJob{ID: "fresh", Status: models.ExportStatusPending, RequestedBy: "parent-1", CreatedAt: now}
	svc.mu.Unlock()

	evicted := svc.evictExpiredJobs(now)
	assert.Equal(t, 1, evicted)

	actor := Actor{UserID: "parent-1", Role: models.RoleParent}
	_, err := svc.Status(actor, "stale")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	job, err := svc.Status(actor, "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusPending, job.Status)
}
