package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

type mockPlatformRepo struct {
	bySubject map[string][]models.Platform
	general   []models.Platform
	created   []models.Platform
	err       error
}

func (m *mockPlatformRepo) ListBySubject(ctx context.Context, subject string) ([]models.Platform, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.bySubject[subject], nil
}

func (m *mockPlatformRepo) ListGeneral(ctx context.Context) ([]models.Platform, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.general, nil
}

func (m *mockPlatformRepo) List(ctx context.Context, filter models.PlatformFilter) ([]models.Platform, int, error) {
	var all []models.Platform
	for _, p := range m.bySubject {
		all = append(all, p...)
	}
	all = append(all, m.general...)
	return all, len(all), nil
}

func (m *mockPlatformRepo) FindByID(ctx context.Context, id string) (*models.Platform, error) {
	for _, platforms := range m.bySubject {
		for _, p := range platforms {
			if p.ID == id {
				return &p, nil
			}
		}
	}
	for _, p := range m.general {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPlatformRepo) Create(ctx context.Context, platform *models.Platform) error {
	m.created = append(m.created, *platform)
	return nil
}

func (m *mockPlatformRepo) Update(ctx context.Context, platform *models.Platform) error {
	return nil
}

func (m *mockPlatformRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func newCatalogService(repo *mockPlatformRepo) *PlatformCatalogService {
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	return NewPlatformCatalogService(repo, cache, 0, validator.New(), zap.NewNop())
}

func TestSuggestMatchesSubjectCaseInsensitively(t *testing.T) {
	repo := &mockPlatformRepo{
		bySubject: map[string][]models.Platform{
			"math": {{ID: "p1", Name: "Khan Academy", Subject: "math", Type: models.PlatformTypeSubject}},
		},
		general: []models.Platform{{ID: "g1", Name: "Outschool", Type: models.PlatformTypeGeneral}},
	}
	svc := newCatalogService(repo)

	suggestion, err := svc.Suggest(context.Background(), "  MATH ")
	require.NoError(t, err)

	assert.Equal(t, "math", suggestion.Subject)
	assert.False(t, suggestion.Fallback)
	require.Len(t, suggestion.Platforms, 1)
	assert.Equal(t, "Khan Academy", suggestion.Platforms[0].Name)
}

func TestSuggestFallsBackToGeneral(t *testing.T) {
	repo := &mockPlatformRepo{
		bySubject: map[string][]models.Platform{},
		general:   []models.Platform{{ID: "g1", Name: "Outschool", Type: models.PlatformTypeGeneral}},
	}
	svc := newCatalogService(repo)

	suggestion, err := svc.Suggest(context.Background(), "underwater basket weaving")
	require.NoError(t, err)

	assert.True(t, suggestion.Fallback)
	require.Len(t, suggestion.Platforms, 1)
	assert.Equal(t, "Outschool", suggestion.Platforms[0].Name)
}

func TestSuggestFailsClosedOnLookupError(t *testing.T) {
	repo := &mockPlatformRepo{err: errors.New("connection refused")}
	svc := newCatalogService(repo)

	_, err := svc.Suggest(context.Background(), "math")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestSuggestRejectsEmptySubject(t *testing.T) {
	svc := newCatalogService(&mockPlatformRepo{})

	_, err := svc.Suggest(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCatalogCreateRequiresAdmin(t *testing.T) {
	repo := &mockPlatformRepo{}
	svc := newCatalogService(repo)

	_, err := svc.Create(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, SavePlatformRequest{
		Name: "IXL", URL: "https://www.ixl.com", Subject: "math", Type: models.PlatformTypeSubject,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestCatalogCreateNormalisesSubject(t *testing.T) {
	repo := &mockPlatformRepo{}
	svc := newCatalogService(repo)

	platform, err := svc.Create(context.Background(), Actor{UserID: "admin-1", Role: models.RoleAdmin}, SavePlatformRequest{
		Name: "IXL", URL: "https://www.ixl.com", Subject: " Math ", Type: models.PlatformTypeSubject,
	})
	require.NoError(t, err)
	assert.Equal(t, "math", platform.Subject)

	// General entries never carry a subject.
	general, err := svc.Create(context.Background(), Actor{UserID: "admin-1", Role: models.RoleAdmin}, SavePlatformRequest{
		Name: "Outschool", URL: "https://outschool.com", Subject: "anything", Type: models.PlatformTypeGeneral,
	})
	require.NoError(t, err)
	assert.Empty(t, general.Subject)
}
