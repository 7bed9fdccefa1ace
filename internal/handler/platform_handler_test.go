package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	"github.com/hearthschool/hub-api/internal/service"
)

type fakePlatformRepo struct {
	bySubject map[string][]models.Platform
	general   []models.Platform
}

func (f *fakePlatformRepo) ListBySubject(ctx context.Context, subject string) ([]models.Platform, error) {
	return f.bySubject[subject], nil
}

func (f *fakePlatformRepo) ListGeneral(ctx context.Context) ([]models.Platform, error) {
	return f.general, nil
}

func (f *fakePlatformRepo) List(ctx context.Context, filter models.PlatformFilter) ([]models.Platform, int, error) {
	return nil, 0, nil
}

func (f *fakePlatformRepo) FindByID(ctx context.Context, id string) (*models.Platform, error) {
	return nil, nil
}

func (f *fakePlatformRepo) Create(ctx context.Context, platform *models.Platform) error { return nil }
func (f *fakePlatformRepo) Update(ctx context.Context, platform *models.Platform) error { return nil }
func (f *fakePlatformRepo) Delete(ctx context.Context, id string) error                 { return nil }

func newPlatformHandler(repo *fakePlatformRepo) *PlatformHandler {
	cache := service.NewCacheService(nil, nil, 0, zap.NewNop(), false)
	return NewPlatformHandler(service.NewPlatformCatalogService(repo, cache, 0, nil, zap.NewNop()))
}

func TestPlatformSuggestMatchesSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPlatformHandler(&fakePlatformRepo{
		bySubject: map[string][]models.Platform{
			"math": {{ID: "p1", Name: "Khan Academy", Subject: "math"}},
		},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/platforms/suggest?subject=Math", nil)

	handler.Suggest(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data service.PlatformSuggestion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "math", envelope.Data.Subject)
	assert.False(t, envelope.Data.Fallback)
	require.Len(t, envelope.Data.Platforms, 1)
	assert.Equal(t, "Khan Academy", envelope.Data.Platforms[0].Name)
}

func TestPlatformSuggestFallsBackToGeneral(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPlatformHandler(&fakePlatformRepo{
		general: []models.Platform{{ID: "p9", Name: "Outschool", Type: models.PlatformTypeGeneral}},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/platforms/suggest?subject=underwater+basket+weaving", nil)

	handler.Suggest(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data service.PlatformSuggestion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Fallback)
	require.Len(t, envelope.Data.Platforms, 1)
	assert.Equal(t, "Outschool", envelope.Data.Platforms[0].Name)
}

func TestPlatformSuggestRequiresSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPlatformHandler(&fakePlatformRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/platforms/suggest", nil)

	handler.Suggest(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
