package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/handler"
	"github.com/hearthschool/hub-api/internal/repository"
	"github.com/hearthschool/hub-api/internal/router"
	"github.com/hearthschool/hub-api/internal/service"
	"github.com/hearthschool/hub-api/pkg/cache"
	"github.com/hearthschool/hub-api/pkg/config"
	"github.com/hearthschool/hub-api/pkg/database"
	"github.com/hearthschool/hub-api/pkg/logger"
	"github.com/hearthschool/hub-api/pkg/storage"

	_ "github.com/hearthschool/hub-api/api/swagger"
)

// @title Hearthschool Hub API
// @version 1.0
// @description Homeschool management service: students, term schedules, learning platform plans, rewards and work uploads.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logr, err := logger.New(cfg)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logr.Sync() }()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheEnabled = false
	}

	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cacheEnabled {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.SuggestionCacheTTL, logr, cacheEnabled)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	termPlanRepo := repository.NewTermPlanRepository(db)
	blockRepo := repository.NewTimeBlockRepository(db)
	platformRepo := repository.NewPlatformRepository(db)
	coursePlatformRepo := repository.NewCoursePlatformRepository(db)
	rewardRepo := repository.NewRewardRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	studentSvc := service.NewStudentService(studentRepo, userRepo, validate, logr)
	termPlanSvc := service.NewTermPlanService(termPlanRepo, blockRepo, studentRepo, userRepo, validate, logr)
	catalogSvc := service.NewPlatformCatalogService(platformRepo, cacheSvc, cfg.Catalog.SuggestionCacheTTL, validate, logr)
	coursePlatformSvc := service.NewCoursePlatformService(coursePlatformRepo, termPlanRepo, userRepo, validate, logr)
	rewardSvc := service.NewRewardService(rewardRepo, studentRepo, service.RewardConfig{
		DailyXP:    cfg.Rewards.DailyXP,
		DailyCoins: cfg.Rewards.DailyCoins,
	}, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, termPlanRepo, blockRepo, coursePlatformRepo, rewardRepo, cacheSvc, metrics, cfg.Dashboard.CacheTTL, logr)

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}
	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	uploadSvc := service.NewUploadService(uploadRepo, studentRepo, uploadStore, uploadSigner, service.UploadConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(termPlanRepo, blockRepo, exportStore, exportSigner, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		Workers:         cfg.Exports.WorkerConcurrency,
		MaxRetries:      cfg.Exports.WorkerRetries,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportSvc.Start(ctx)
	defer exportSvc.Stop()

	handlers := router.Handlers{
		Auth:           handler.NewAuthHandler(authSvc),
		Students:       handler.NewStudentHandler(studentSvc),
		TermPlans:      handler.NewTermPlanHandler(termPlanSvc, dashboardSvc),
		Platforms:      handler.NewPlatformHandler(catalogSvc),
		CoursePlatform: handler.NewCoursePlatformHandler(coursePlatformSvc),
		Rewards:        handler.NewRewardHandler(rewardSvc, dashboardSvc),
		Uploads:        handler.NewUploadHandler(uploadSvc),
		Dashboards:     handler.NewDashboardHandler(dashboardSvc),
		Exports:        handler.NewExportHandler(exportSvc),
		Metrics:        handler.NewMetricsHandler(metrics),
		Users:          handler.NewUserHandler(userSvc),
	}

	engine := router.New(cfg, logr, authSvc, metrics, handlers)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		logr.Info("server listening", zap.Int("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
