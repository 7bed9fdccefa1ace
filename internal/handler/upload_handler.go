package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/service"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/response"
	"github.com/hearthschool/hub-api/pkg/sanitize"
)

// UploadHandler exposes completed-work upload endpoints.
type UploadHandler struct {
	uploads *service.UploadService
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(uploads *service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload godoc
// @Summary Upload a completed-work file
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param studentId path string true "Student ID"
// @Param file formData file true "Work file"
// @Param time_block_id formData string false "Related time block"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form must include a file"))
		return
	}

	var blockID *string
	if raw := sanitize.ID(c.PostForm("time_block_id")); raw != "" {
		blockID = &raw
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.uploads.Save(
		c.Request.Context(),
		actorFromContext(c),
		pathID(c, "studentId"),
		blockID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List a student's uploads
// @Tags Uploads
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/uploads [get]
func (h *UploadHandler) List(c *gin.Context) {
	results, err := h.uploads.List(c.Request.Context(), actorFromContext(c), pathID(c, "studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Download streams a stored file for a valid signed token. The token itself
// authorizes the request, so this route sits outside the JWT group.
//
// @Summary Download an upload via signed token
// @Tags Uploads
// @Param token path string true "Signed token"
// @Success 200
// @Router /uploads/download/{token} [get]
func (h *UploadHandler) Download(c *gin.Context) {
	upload, file, err := h.uploads.OpenSigned(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", upload.Filename))
	c.Header("Content-Type", upload.ContentType)
	http.ServeContent(c.Writer, c.Request, upload.Filename, upload.CreatedAt, file)
}

// Delete godoc
// @Summary Remove an upload
// @Tags Uploads
// @Param id path string true "Upload ID"
// @Success 204
// @Security BearerAuth
// @Router /uploads/{id} [delete]
func (h *UploadHandler) Delete(c *gin.Context) {
	if err := h.uploads.Delete(c.Request.Context(), actorFromContext(c), pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
