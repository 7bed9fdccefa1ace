package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/service"
	"github.com/hearthschool/hub-api/pkg/response"
)

// DashboardHandler exposes the aggregated landing views.
type DashboardHandler struct {
	dashboards *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboards *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Parent godoc
// @Summary Parent dashboard
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/parent [get]
func (h *DashboardHandler) Parent(c *gin.Context) {
	dashboard, err := h.dashboards.Parent(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Student godoc
// @Summary Student dashboard
// @Tags Dashboards
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/student/{studentId} [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	dashboard, err := h.dashboards.Student(c.Request.Context(), actorFromContext(c), pathID(c, "studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
