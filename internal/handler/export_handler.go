package handler

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/models"
	"github.com/hearthschool/hub-api/internal/service"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/response"
)

// ExportHandler exposes schedule export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

type exportRequest struct {
	Format models.ExportFormat `json:"format" binding:"required"`
}

// Request godoc
// @Summary Request a schedule export
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Term plan ID"
// @Param payload body handler.exportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /term-plans/{id}/exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	job, err := h.exports.Request(c.Request.Context(), actorFromContext(c), pathID(c, "id"), req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Poll an export job
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Status(actorFromContext(c), pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download streams a rendered export for a valid signed token.
//
// @Summary Download an export via signed token
// @Tags Exports
// @Param token path string true "Signed token"
// @Success 200
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, relPath, err := h.exports.OpenSigned(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	name := filepath.Base(relPath)
	c.Header("Content-Disposition", "attachment; filename="+name)
	http.ServeContent(c.Writer, c.Request, name, time.Now(), file)
}
