package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gpalytics/gpalytics-api/api/swagger"
	"github.com/gpalytics/gpalytics-api/internal/handler"
	"github.com/gpalytics/gpalytics-api/internal/middleware"
	"github.com/gpalytics/gpalytics-api/internal/models"
	"github.com/gpalytics/gpalytics-api/internal/repository"
	"github.com/gpalytics/gpalytics-api/internal/service"
	"github.com/gpalytics/gpalytics-api/pkg/cache"
	"github.com/gpalytics/gpalytics-api/pkg/config"
	"github.com/gpalytics/gpalytics-api/pkg/database"
	"github.com/gpalytics/gpalytics-api/pkg/jobs"
	"github.com/gpalytics/gpalytics-api/pkg/logger"
	corsmiddleware "github.com/gpalytics/gpalytics-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gpalytics/gpalytics-api/pkg/middleware/requestid"
	"github.com/gpalytics/gpalytics-api/pkg/storage"
	"github.com/gpalytics/gpalytics-api/pkg/vision"
)

// @title GPAlytics API
// @version 1.0.0
// @description Grade ingestion and GPA analytics backend
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	if cfg.Analytics.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, analytics cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	userRepo := repository.NewUserRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	ingestSvc := service.NewIngestService(gradeRepo, userRepo, cacheSvc, metricsSvc, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, userRepo, cacheSvc, logr)
	analyticsSvc := service.NewAnalyticsService(gradeRepo, cacheSvc, logr)

	extractor := vision.NewClient(vision.Config{
		Endpoint: cfg.OCR.Endpoint,
		APIKey:   cfg.OCR.APIKey,
		Timeout:  cfg.OCR.Timeout,
	}, logr)
	var uploadStore *storage.LocalStorage
	if cfg.Uploads.StorageDir != "" {
		uploadStore, err = storage.NewLocalStorage(cfg.Uploads.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init upload storage", "error", err)
		}
	}
	var archive service.ImageArchive
	if uploadStore != nil {
		archive = uploadStore
	}
	uploadSvc := service.NewUploadService(extractor, ingestSvc, archive, service.UploadConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var exportJobSvc *service.ExportJobService
	if cfg.Exports.Enabled {
		exportRepo := repository.NewExportRepository(db)
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(gradeRepo, exportStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, nil, nil)

		worker := service.NewExportWorker(exportRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
		queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		exportJobSvc = service.NewExportJobService(exportRepo, queue, exportSvc, logr, service.ExportJobServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	gradeHandler := handler.NewGradeHandler(uploadSvc, gradeSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	api.GET("/profile", middleware.JWT(authSvc), authHandler.Profile)

	grades := api.Group("/grades", middleware.JWT(authSvc))
	{
		grades.POST("/upload", gradeHandler.Upload)
		grades.GET("", gradeHandler.List)
		grades.GET("/batches", gradeHandler.ListBatches)
		grades.DELETE("/semester/:semester", gradeHandler.DeleteSemester)
		grades.DELETE("/batch/:id", middleware.Audit(userRepo, models.AuditActionGradesDelete, "grades"), gradeHandler.DeleteBatch)
		grades.DELETE("/reset", gradeHandler.Reset)
	}

	analytics := api.Group("/analytics", middleware.JWT(authSvc))
	{
		analytics.GET("/cgpa", analyticsHandler.Cgpa)
		analytics.GET("/semester", analyticsHandler.Semesters)
		analytics.GET("/semester/:semester", analyticsHandler.Semester)
		analytics.GET("/performance", analyticsHandler.Performance)
	}

	if exportJobSvc != nil {
		exportHandler := handler.NewExportHandler(exportJobSvc)
		exports := api.Group("/exports")
		{
			exports.POST("", middleware.JWT(authSvc), exportHandler.Create)
			exports.GET("/:id", middleware.JWT(authSvc), exportHandler.Status)
			exports.GET("/download/:token", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
