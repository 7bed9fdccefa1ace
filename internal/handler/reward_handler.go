package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/service"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/response"
)

// RewardHandler exposes gamified reward endpoints.
type RewardHandler struct {
	rewards    *service.RewardService
	dashboards *service.DashboardService
}

// NewRewardHandler constructs RewardHandler.
func NewRewardHandler(rewards *service.RewardService, dashboards *service.DashboardService) *RewardHandler {
	return &RewardHandler{rewards: rewards, dashboards: dashboards}
}

func (h *RewardHandler) invalidateDashboards(c *gin.Context, studentID string) {
	if h.dashboards != nil {
		h.dashboards.Invalidate(c.Request.Context(), "", studentID)
	}
}

// Grant godoc
// @Summary Grant XP or coins to a student
// @Tags Rewards
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body service.GrantRewardRequest true "Reward payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/rewards [post]
func (h *RewardHandler) Grant(c *gin.Context) {
	var req service.GrantRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	studentID := pathID(c, "studentId")
	profile, err := h.rewards.Grant(c.Request.Context(), actorFromContext(c), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c, studentID)
	response.JSON(c, http.StatusOK, profile, nil)
}

// CheckIn godoc
// @Summary Record the daily check-in for a student
// @Tags Rewards
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/rewards/check-in [post]
func (h *RewardHandler) CheckIn(c *gin.Context) {
	studentID := pathID(c, "studentId")
	profile, err := h.rewards.CheckIn(c.Request.Context(), actorFromContext(c), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c, studentID)
	response.JSON(c, http.StatusOK, profile, nil)
}

// Profile godoc
// @Summary Get a student's reward snapshot
// @Tags Rewards
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/rewards [get]
func (h *RewardHandler) Profile(c *gin.Context) {
	profile, err := h.rewards.Profile(c.Request.Context(), actorFromContext(c), pathID(c, "studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// History godoc
// @Summary List a student's recent reward events
// @Tags Rewards
// @Produce json
// @Param studentId path string true "Student ID"
// @Param limit query int false "Maximum events"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/rewards/history [get]
func (h *RewardHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.rewards.History(c.Request.Context(), actorFromContext(c), pathID(c, "studentId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}
