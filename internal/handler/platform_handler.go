package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/models"
	"github.com/hearthschool/hub-api/internal/service"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/response"
)

// PlatformHandler exposes catalog and suggestion endpoints.
type PlatformHandler struct {
	catalog *service.PlatformCatalogService
}

// NewPlatformHandler constructs PlatformHandler.
func NewPlatformHandler(catalog *service.PlatformCatalogService) *PlatformHandler {
	return &PlatformHandler{catalog: catalog}
}

// Suggest godoc
// @Summary Suggest platforms for a subject
// @Tags Platforms
// @Produce json
// @Param subject query string true "Subject name"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /platforms/suggest [get]
func (h *PlatformHandler) Suggest(c *gin.Context) {
	suggestion, err := h.catalog.Suggest(c.Request.Context(), c.Query("subject"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}

// List godoc
// @Summary List catalog entries
// @Tags Platforms
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param type query string false "Filter by type"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /platforms [get]
func (h *PlatformHandler) List(c *gin.Context) {
	var filter models.PlatformFilter
	filter.Subject = strings.ToLower(strings.TrimSpace(c.Query("subject")))
	filter.Type = models.PlatformType(c.Query("type"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	platforms, pagination, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, platforms, pagination)
}

// Get godoc
// @Summary Get a catalog entry
// @Tags Platforms
// @Produce json
// @Param id path string true "Platform ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /platforms/{id} [get]
func (h *PlatformHandler) Get(c *gin.Context) {
	platform, err := h.catalog.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, platform, nil)
}

// Create godoc
// @Summary Add a catalog entry
// @Tags Platforms
// @Accept json
// @Produce json
// @Param payload body service.SavePlatformRequest true "Platform payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /platforms [post]
func (h *PlatformHandler) Create(c *gin.Context) {
	var req service.SavePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	platform, err := h.catalog.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, platform)
}

// Update godoc
// @Summary Replace a catalog entry
// @Tags Platforms
// @Accept json
// @Produce json
// @Param id path string true "Platform ID"
// @Param payload body service.SavePlatformRequest true "Platform payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /platforms/{id} [put]
func (h *PlatformHandler) Update(c *gin.Context) {
	var req service.SavePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	platform, err := h.catalog.Update(c.Request.Context(), actorFromContext(c), pathID(c, "id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, platform, nil)
}

// Delete godoc
// @Summary Remove a catalog entry
// @Tags Platforms
// @Param id path string true "Platform ID"
// @Success 204
// @Security BearerAuth
// @Router /platforms/{id} [delete]
func (h *PlatformHandler) Delete(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), actorFromContext(c), pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
