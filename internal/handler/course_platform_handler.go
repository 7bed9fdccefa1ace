package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/service"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/response"
	"github.com/hearthschool/hub-api/pkg/sanitize"
)

// CoursePlatformHandler exposes platform plan endpoints.
type CoursePlatformHandler struct {
	assignments *service.CoursePlatformService
}

// NewCoursePlatformHandler constructs CoursePlatformHandler.
func NewCoursePlatformHandler(assignments *service.CoursePlatformService) *CoursePlatformHandler {
	return &CoursePlatformHandler{assignments: assignments}
}

// Resolve godoc
// @Summary Resolve platform assignments for a plan
// @Tags PlatformPlan
// @Produce json
// @Param id path string true "Term plan ID"
// @Param studentId query string false "Narrow to one student"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /term-plans/{id}/platform-plan [get]
func (h *CoursePlatformHandler) Resolve(c *gin.Context) {
	assignments, err := h.assignments.Resolve(c.Request.Context(), actorFromContext(c), pathID(c, "id"), sanitize.ID(c.Query("studentId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Save godoc
// @Summary Save the platform plan for a student
// @Tags PlatformPlan
// @Accept json
// @Produce json
// @Param id path string true "Term plan ID"
// @Param payload body service.SavePlatformPlanRequest true "Assignments"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /term-plans/{id}/platform-plan [put]
func (h *CoursePlatformHandler) Save(c *gin.Context) {
	var req service.SavePlatformPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	saved, err := h.assignments.SavePlan(c.Request.Context(), actorFromContext(c), pathID(c, "id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved, nil)
}

// Update godoc
// @Summary Update a single assignment with a concurrency guard
// @Tags PlatformPlan
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateAssignmentRequest true "Changes with expected_updated_at"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /platform-assignments/{id} [patch]
func (h *CoursePlatformHandler) Update(c *gin.Context) {
	var req service.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	assignment, err := h.assignments.Update(c.Request.Context(), actorFromContext(c), pathID(c, "id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Remove an assignment
// @Tags PlatformPlan
// @Param id path string true "Assignment ID"
// @Success 204
// @Security BearerAuth
// @Router /platform-assignments/{id} [delete]
func (h *CoursePlatformHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), actorFromContext(c), pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
