package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

const platformCachePrefix = "platforms:suggest:"

type platformRepository interface {
	ListBySubject(ctx context.Context, subject string) ([]models.Platform, error)
	ListGeneral(ctx context.Context) ([]models.Platform, error)
	List(ctx context.Context, filter models.PlatformFilter) ([]models.Platform, int, error)
	FindByID(ctx context.Context, id string) (*models.Platform, error)
	Create(ctx context.Context, platform *models.Platform) error
	Update(ctx context.Context, platform *models.Platform) error
	Delete(ctx context.Context, id string) error
}

// SavePlatformRequest is the admin payload for catalog entries.
type SavePlatformRequest struct {
	Name        string              `json:"name" validate:"required"`
	URL         string              `json:"url" validate:"required,url"`
	Subject     string              `json:"subject"`
	Type        models.PlatformType `json:"type" validate:"required,oneof=general subject"`
	Description string              `json:"description"`
}

// PlatformSuggestion is the response of a suggestion lookup.
type PlatformSuggestion struct {
	Subject   string            `json:"subject"`
	Fallback  bool              `json:"fallback"`
	Platforms []models.Platform `json:"platforms"`
}

// PlatformCatalogService serves curated platform suggestions and the admin
// CRUD behind the catalog.
type PlatformCatalogService struct {
	repo      platformRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPlatformCatalogService constructs a PlatformCatalogService.
func NewPlatformCatalogService(repo platformRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *PlatformCatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PlatformCatalogService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Suggest resolves platform recommendations for a subject. The lookup is
// exact on the lowercased subject; when nothing matches, general entries are
// returned as a fallback. Lookup failures surface as errors rather than an
// empty list so callers can tell "no match" from "catalog unavailable".
func (s *PlatformCatalogService) Suggest(ctx context.Context, subject string) (*PlatformSuggestion, error) {
	normalized := strings.ToLower(strings.TrimSpace(subject))
	if normalized == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject must not be empty")
	}

	cacheKey := platformCachePrefix + normalized
	var cached PlatformSuggestion
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	platforms, err := s.repo.ListBySubject(ctx, normalized)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up platforms")
	}

	suggestion := &PlatformSuggestion{Subject: normalized, Platforms: platforms}
	if len(platforms) == 0 {
		general, err := s.repo.ListGeneral(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up general platforms")
		}
		suggestion.Fallback = true
		suggestion.Platforms = general
	}

	if err := s.cache.Set(ctx, cacheKey, suggestion, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache platform suggestion", zap.String("subject", normalized), zap.Error(err))
	}

	return suggestion, nil
}

// List returns catalog entries matching the filter.
func (s *PlatformCatalogService) List(ctx context.Context, filter models.PlatformFilter) ([]models.Platform, *models.Pagination, error) {
	platforms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list platforms")
	}
	return platforms, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single catalog entry.
func (s *PlatformCatalogService) Get(ctx context.Context, id string) (*models.Platform, error) {
	platform, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "platform not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load platform")
	}
	return platform, nil
}

// Create adds a catalog entry and invalidates suggestion caches.
func (s *PlatformCatalogService) Create(ctx context.Context, actor Actor, req SavePlatformRequest) (*models.Platform, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may manage the catalog")
	}
	platform, err := s.buildEntry(req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, platform); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create platform")
	}
	s.invalidateSuggestions(ctx)
	return platform, nil
}

// Update replaces a catalog entry and invalidates suggestion caches.
func (s *PlatformCatalogService) Update(ctx context.Context, actor Actor, id string, req SavePlatformRequest) (*models.Platform, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may manage the catalog")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	platform, err := s.buildEntry(req)
	if err != nil {
		return nil, err
	}
	platform.ID = existing.ID
	platform.CreatedAt = existing.CreatedAt
	platform.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, platform); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update platform")
	}
	s.invalidateSuggestions(ctx)
	return platform, nil
}

// Delete removes a catalog entry and invalidates suggestion caches.
func (s *PlatformCatalogService) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may manage the catalog")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete platform")
	}
	s.invalidateSuggestions(ctx)
	return nil
}

func (s *PlatformCatalogService) buildEntry(req SavePlatformRequest) (*models.Platform, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid platform payload")
	}

	subject := strings.ToLower(strings.TrimSpace(req.Subject))
	if req.Type == models.PlatformTypeSubject && subject == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject entries require a subject")
	}
	if req.Type == models.PlatformTypeGeneral {
		subject = ""
	}

	return &models.Platform{
		Name:        strings.TrimSpace(req.Name),
		URL:         req.URL,
		Subject:     subject,
		Type:        req.Type,
		Description: strings.TrimSpace(req.Description),
	}, nil
}

func (s *PlatformCatalogService) invalidateSuggestions(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("%s*", platformCachePrefix)); err != nil {
		s.logger.Warn("failed to invalidate suggestion cache", zap.Error(err))
	}
}
