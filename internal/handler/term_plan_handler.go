package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/models"
	"github.com/hearthschool/hub-api/internal/service"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/response"
)

// TermPlanHandler exposes term plan and time block endpoints.
type TermPlanHandler struct {
	plans      *service.TermPlanService
	dashboards *service.DashboardService
}

// NewTermPlanHandler constructs TermPlanHandler.
func NewTermPlanHandler(plans *service.TermPlanService, dashboards *service.DashboardService) *TermPlanHandler {
	return &TermPlanHandler{plans: plans, dashboards: dashboards}
}

// Plan mutations change what both dashboards show.
func (h *TermPlanHandler) invalidateDashboards(c *gin.Context, studentIDs ...string) {
	if h.dashboards == nil {
		return
	}
	parentID := actorFromContext(c).UserID
	if len(studentIDs) == 0 {
		h.dashboards.Invalidate(c.Request.Context(), parentID, "")
		return
	}
	for _, studentID := range studentIDs {
		h.dashboards.Invalidate(c.Request.Context(), parentID, studentID)
		parentID = ""
	}
}

// List godoc
// @Summary List term plans
// @Tags TermPlans
// @Produce json
// @Param studentId query string false "Filter by linked student"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /term-plans [get]
func (h *TermPlanHandler) List(c *gin.Context) {
	var filter models.TermPlanFilter
	filter.StudentID = c.Query("studentId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	plans, pagination, err := h.plans.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get a term plan with its blocks
// @Tags TermPlans
// @Produce json
// @Param id path string true "Term plan ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /term-plans/{id} [get]
func (h *TermPlanHandler) Get(c *gin.Context) {
	detail, err := h.plans.Get(c.Request.Context(), actorFromContext(c), pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// LatestForStudent godoc
// @Summary Get the student's current term plan
// @Tags TermPlans
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/term-plan [get]
func (h *TermPlanHandler) LatestForStudent(c *gin.Context) {
	detail, err := h.plans.LatestForStudent(c.Request.Context(), actorFromContext(c), pathID(c, "studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create a term plan and generate its blocks
// @Tags TermPlans
// @Accept json
// @Produce json
// @Param payload body service.CreateTermPlanRequest true "Plan preferences"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /term-plans [post]
func (h *TermPlanHandler) Create(c *gin.Context) {
	var req service.CreateTermPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.plans.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c, detail.StudentIDs...)
	response.Created(c, detail)
}

// Update godoc
// @Summary Update a term plan
// @Tags TermPlans
// @Accept json
// @Produce json
// @Param id path string true "Term plan ID"
// @Param payload body service.UpdateTermPlanRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /term-plans/{id} [put]
func (h *TermPlanHandler) Update(c *gin.Context) {
	var req service.UpdateTermPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.plans.Update(c.Request.Context(), actorFromContext(c), pathID(c, "id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c, detail.StudentIDs...)
	response.JSON(c, http.StatusOK, detail, nil)
}

// LinkStudent godoc
// @Summary Link a student to an existing plan
// @Tags TermPlans
// @Accept json
// @Produce json
// @Param id path string true "Term plan ID"
// @Param payload body handler.linkStudentRequest true "Student reference"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /term-plans/{id}/students [post]
func (h *TermPlanHandler) LinkStudent(c *gin.Context) {
	var req linkStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	link, err := h.plans.LinkStudent(c.Request.Context(), actorFromContext(c), pathID(c, "id"), req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c, req.StudentID)
	response.Created(c, link)
}

type linkStudentRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

// RenameBlock godoc
// @Summary Rename a time block's activity
// @Tags TermPlans
// @Accept json
// @Produce json
// @Param id path string true "Time block ID"
// @Param payload body handler.renameBlockRequest true "New activity name"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /time-blocks/{id} [patch]
func (h *TermPlanHandler) RenameBlock(c *gin.Context) {
	var req renameBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	block, err := h.plans.RenameBlock(c.Request.Context(), actorFromContext(c), pathID(c, "id"), req.ActivityName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, block, nil)
}

type renameBlockRequest struct {
	ActivityName string `json:"activity_name" binding:"required"`
}

// Delete godoc
// @Summary Delete a term plan
// @Tags TermPlans
// @Param id path string true "Term plan ID"
// @Success 204
// @Security BearerAuth
// @Router /term-plans/{id} [delete]
func (h *TermPlanHandler) Delete(c *gin.Context) {
	if err := h.plans.Delete(c.Request.Context(), actorFromContext(c), pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.NoContent(c)
}
