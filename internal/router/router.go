package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/handler"
	"github.com/hearthschool/hub-api/internal/middleware"
	"github.com/hearthschool/hub-api/internal/models"
	"github.com/hearthschool/hub-api/internal/service"
	"github.com/hearthschool/hub-api/pkg/config"
	"github.com/hearthschool/hub-api/pkg/logger"
	corsmiddleware "github.com/hearthschool/hub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hearthschool/hub-api/pkg/middleware/requestid"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth           *handler.AuthHandler
	Students       *handler.StudentHandler
	TermPlans      *handler.TermPlanHandler
	Platforms      *handler.PlatformHandler
	CoursePlatform *handler.CoursePlatformHandler
	Rewards        *handler.RewardHandler
	Uploads        *handler.UploadHandler
	Dashboards     *handler.DashboardHandler
	Exports        *handler.ExportHandler
	Metrics        *handler.MetricsHandler
	Users          *handler.UserHandler
}

// New assembles the gin engine with all middleware and routes.
func New(cfg *config.Config, logr *zap.Logger, auth *service.AuthService, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public routes; signed-token downloads authorize themselves.
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/uploads/download/:token", h.Uploads.Download)
	api.GET("/exports/download/:token", h.Exports.Download)

	authed := api.Group("", middleware.JWT(auth))

	authed.POST("/auth/logout", h.Auth.Logout)
	authed.GET("/auth/me", h.Auth.Me)
	authed.PUT("/auth/password", h.Auth.ChangePassword)

	parentOrAdmin := middleware.RequireRoles(models.RoleParent, models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleParent, models.RoleAdmin, models.RoleStudent)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	selfOrGuardian := middleware.RBAC(string(models.RoleParent), string(models.RoleAdmin), "SELF")

	students := authed.Group("/students")
	{
		students.GET("", parentOrAdmin, h.Students.List)
		students.POST("", parentOrAdmin, h.Students.Create)
		students.GET("/:studentId", selfOrGuardian, h.Students.Get)
		students.PUT("/:studentId", parentOrAdmin, h.Students.Update)
		students.DELETE("/:studentId", parentOrAdmin, h.Students.Deactivate)

		students.GET("/:studentId/term-plan", selfOrGuardian, h.TermPlans.LatestForStudent)

		students.POST("/:studentId/rewards", parentOrAdmin, h.Rewards.Grant)
		students.POST("/:studentId/rewards/check-in", selfOrGuardian, h.Rewards.CheckIn)
		students.GET("/:studentId/rewards", selfOrGuardian, h.Rewards.Profile)
		students.GET("/:studentId/rewards/history", selfOrGuardian, h.Rewards.History)

		students.POST("/:studentId/uploads", selfOrGuardian, h.Uploads.Upload)
		students.GET("/:studentId/uploads", selfOrGuardian, h.Uploads.List)
	}

	plans := authed.Group("/term-plans")
	{
		plans.GET("", anyRole, h.TermPlans.List)
		plans.POST("", parentOrAdmin, h.TermPlans.Create)
		plans.GET("/:id", anyRole, h.TermPlans.Get)
		plans.PUT("/:id", parentOrAdmin, h.TermPlans.Update)
		plans.DELETE("/:id", parentOrAdmin, h.TermPlans.Delete)
		plans.POST("/:id/students", parentOrAdmin, h.TermPlans.LinkStudent)

		plans.GET("/:id/platform-plan", anyRole, h.CoursePlatform.Resolve)
		plans.PUT("/:id/platform-plan", parentOrAdmin, h.CoursePlatform.Save)

		plans.POST("/:id/exports", parentOrAdmin, h.Exports.Request)
	}

	authed.PATCH("/time-blocks/:id", parentOrAdmin, h.TermPlans.RenameBlock)

	authed.PATCH("/platform-assignments/:id", parentOrAdmin, h.CoursePlatform.Update)
	authed.DELETE("/platform-assignments/:id", parentOrAdmin, h.CoursePlatform.Delete)

	platforms := authed.Group("/platforms")
	{
		platforms.GET("/suggest", anyRole, h.Platforms.Suggest)
		platforms.GET("", anyRole, h.Platforms.List)
		platforms.GET("/:id", anyRole, h.Platforms.Get)
		platforms.POST("", adminOnly, h.Platforms.Create)
		platforms.PUT("/:id", adminOnly, h.Platforms.Update)
		platforms.DELETE("/:id", adminOnly, h.Platforms.Delete)
	}

	authed.GET("/dashboard/parent", parentOrAdmin, h.Dashboards.Parent)
	authed.GET("/dashboard/student/:studentId", selfOrGuardian, h.Dashboards.Student)

	authed.GET("/exports/:id", parentOrAdmin, h.Exports.Status)

	authed.DELETE("/uploads/:id", parentOrAdmin, h.Uploads.Delete)

	authed.GET("/metrics/snapshot", adminOnly, h.Metrics.Snapshot)
	authed.GET("/users", adminOnly, h.Users.List)
	authed.GET("/users/:id", anyRole, h.Users.Get)

	return r
}
