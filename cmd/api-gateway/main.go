package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/oakmont-tuition/omt-api/api/swagger"
	"github.com/oakmont-tuition/omt-api/internal/handler"
	"github.com/oakmont-tuition/omt-api/internal/middleware"
	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/repository"
	"github.com/oakmont-tuition/omt-api/internal/service"
	"github.com/oakmont-tuition/omt-api/pkg/cache"
	"github.com/oakmont-tuition/omt-api/pkg/config"
	"github.com/oakmont-tuition/omt-api/pkg/database"
	"github.com/oakmont-tuition/omt-api/pkg/export"
	"github.com/oakmont-tuition/omt-api/pkg/jobs"
	"github.com/oakmont-tuition/omt-api/pkg/logger"
	corsmiddleware "github.com/oakmont-tuition/omt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/oakmont-tuition/omt-api/pkg/middleware/requestid"
	"github.com/oakmont-tuition/omt-api/pkg/storage"
)

// @title Oakmont Tuition API
// @version 1.0.0
// @description Timetabling and detention booking for the Oakmont tuition centre.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	termRepo := repository.NewTermRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	classRepo := repository.NewClassRepository(db)
	slotRepo := repository.NewDetentionSlotRepository(db)
	detentionRepo := repository.NewDetentionRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	followupRepo := repository.NewFollowupRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled)

	// Notifications run through an in-process queue; when disabled the
	// service keeps accepting notifications and drops them silently.
	var notificationQueue *jobs.Queue
	if cfg.Notifications.Enabled {
		sender := service.NewLogSender(logr)
		worker := service.NewNotificationWorker(sender, logr)
		notificationQueue = jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifications.WorkerConcurrency,
			BufferSize: 256,
			MaxRetries: cfg.Notifications.WorkerRetries,
			RetryDelay: 5 * time.Second,
			Logger:     logr,
		})
		notificationQueue.Start(ctx)
		defer notificationQueue.Stop()
	}
	var notifier *service.NotificationService
	if notificationQueue != nil {
		notifier = service.NewNotificationService(notificationQueue, logr)
	} else {
		notifier = service.NewNotificationService(nil, logr)
	}

	// Services.
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "omt-api",
	})
	userSvc := service.NewUserService(userRepo, nil, logr)
	termSvc := service.NewTermService(termRepo, userRepo, cacheSvc, nil, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, nil, logr)
	classSvc := service.NewClassService(classRepo, userRepo, termRepo, nil, logr)
	slotSvc := service.NewDetentionSlotService(slotRepo, classroomRepo, termRepo, cacheSvc, nil, logr)
	detentionSvc := service.NewDetentionService(detentionRepo, slotRepo, userRepo, classRepo, notifier, cacheSvc, nil, logr)
	curriculumSvc := service.NewCurriculumService(topicRepo, assessmentRepo, nil, logr)
	progressSvc := service.NewProgressService(progressRepo, termRepo, nil, logr)
	followupSvc := service.NewFollowupService(followupRepo, nil, logr)

	// Export pipeline: jobs are queued, rendered by workers and served
	// back through signed download URLs.
	var exportJobSvc *service.ExportJobService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(detentionRepo, classRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		exportWorker := service.NewExportWorker(exportJobRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
		exportQueue := jobs.NewQueue("exports", exportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			BufferSize: 64,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 10 * time.Second,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		exportJobSvc = service.NewExportJobService(exportJobRepo, exportQueue, exportSvc, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: time.Hour,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	termHandler := handler.NewTermHandler(termSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc)
	classHandler := handler.NewClassHandler(classSvc)
	slotHandler := handler.NewDetentionSlotHandler(slotSvc)
	detentionHandler := handler.NewDetentionHandler(detentionSvc)
	curriculumHandler := handler.NewCurriculumHandler(curriculumSvc)
	progressHandler := handler.NewProgressHandler(progressSvc)
	followupHandler := handler.NewFollowupHandler(followupSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
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
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	staff := []models.UserRole{models.RoleAdmin, models.RoleTeacher}
	everyone := []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleStudent}

	system := api.Group("/system", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		system.GET("/metrics", metricsHandler.Summary)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		admin := middleware.RequireRoles(models.RoleAdmin)
		users.GET("", admin, userHandler.List)
		// Account owners may read their own record.
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.POST("", admin, middleware.Audit(userRepo, "create", "user"), userHandler.Create)
		users.PUT("/:id", admin, middleware.Audit(userRepo, "update", "user"), userHandler.Update)
		users.DELETE("/:id", admin, middleware.Audit(userRepo, "delete", "user"), userHandler.Delete)
	}

	terms := api.Group("/terms", middleware.JWT(authSvc))
	{
		terms.GET("", middleware.RequireRoles(staff...), termHandler.List)
		terms.GET("/current", middleware.RequireRoles(everyone...), termHandler.GetCurrent)
		terms.GET("/current/week", middleware.RequireRoles(everyone...), termHandler.CurrentWeek)
		terms.GET("/:id", middleware.RequireRoles(staff...), termHandler.Get)
		terms.POST("", middleware.RequireRoles(models.RoleAdmin), termHandler.Create)
		terms.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), termHandler.Update)
		terms.POST("/:id/activate", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "activate", "term"), termHandler.Activate)
		terms.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), termHandler.Delete)
	}

	classrooms := api.Group("/classrooms", middleware.JWT(authSvc))
	{
		classrooms.GET("", middleware.RequireRoles(staff...), classroomHandler.List)
		classrooms.GET("/:id", middleware.RequireRoles(staff...), classroomHandler.Get)
		classrooms.POST("", middleware.RequireRoles(models.RoleAdmin), classroomHandler.Create)
		classrooms.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), classroomHandler.Update)
		classrooms.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), classroomHandler.Delete)
	}

	classes := api.Group("/classes", middleware.JWT(authSvc))
	{
		classes.GET("", middleware.RequireRoles(staff...), classHandler.List)
		classes.GET("/today", middleware.RequireRoles(staff...), classHandler.Today)
		classes.GET("/:id", middleware.RequireRoles(staff...), classHandler.Get)
		classes.POST("", middleware.RequireRoles(staff...), classHandler.Create)
		classes.POST("/copy", middleware.RequireRoles(models.RoleAdmin), classHandler.CopyToTerm)
		classes.PUT("/:id", middleware.RequireRoles(staff...), classHandler.Update)
		classes.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), classHandler.Delete)
	}

	slots := api.Group("/detention-slots", middleware.JWT(authSvc))
	{
		slots.GET("", middleware.RequireRoles(everyone...), slotHandler.List)
		slots.GET("/grid", middleware.RequireRoles(staff...), slotHandler.Grid)
		slots.GET("/:id", middleware.RequireRoles(everyone...), slotHandler.Get)
		slots.POST("", middleware.RequireRoles(staff...), slotHandler.Create)
		slots.POST("/toggle", middleware.RequireRoles(staff...), slotHandler.Toggle)
		slots.PUT("/:id", middleware.RequireRoles(staff...), slotHandler.Update)
		slots.DELETE("/:id", middleware.RequireRoles(staff...), slotHandler.Delete)
	}

	detentions := api.Group("/detentions", middleware.JWT(authSvc))
	{
		detentions.GET("", middleware.RequireRoles(everyone...), detentionHandler.List)
		detentions.GET("/today", middleware.RequireRoles(staff...), detentionHandler.Today)
		detentions.GET("/:id", middleware.RequireRoles(everyone...), detentionHandler.Get)
		detentions.POST("", middleware.RequireRoles(staff...), detentionHandler.Assign)
		detentions.POST("/:id/book", middleware.RequireRoles(everyone...), detentionHandler.Book)
		detentions.POST("/:id/resolve", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "resolve", "detention"), detentionHandler.Resolve)
		detentions.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), detentionHandler.Delete)
	}

	topics := api.Group("/topics", middleware.JWT(authSvc))
	{
		topics.GET("", middleware.RequireRoles(staff...), curriculumHandler.ListTopics)
		topics.GET("/:id", middleware.RequireRoles(staff...), curriculumHandler.GetTopic)
		topics.POST("", middleware.RequireRoles(staff...), curriculumHandler.CreateTopic)
		topics.PUT("/:id", middleware.RequireRoles(staff...), curriculumHandler.UpdateTopic)
		topics.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), curriculumHandler.DeleteTopic)
	}

	assessments := api.Group("/assessments", middleware.JWT(authSvc))
	{
		assessments.GET("", middleware.RequireRoles(staff...), curriculumHandler.ListAssessments)
		assessments.GET("/:id", middleware.RequireRoles(staff...), curriculumHandler.GetAssessment)
		assessments.POST("", middleware.RequireRoles(staff...), curriculumHandler.CreateAssessment)
		assessments.PUT("/:id", middleware.RequireRoles(staff...), curriculumHandler.UpdateAssessment)
		assessments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), curriculumHandler.DeleteAssessment)
	}

	progress := api.Group("/progress", middleware.JWT(authSvc))
	{
		progress.GET("", middleware.RequireRoles(staff...), progressHandler.List)
		progress.GET("/:id", middleware.RequireRoles(staff...), progressHandler.Get)
		progress.POST("", middleware.RequireRoles(models.RoleAdmin), progressHandler.Create)
		progress.PUT("/:id", middleware.RequireRoles(staff...), progressHandler.Update)
		progress.PUT("/:id/weeks/:week", middleware.RequireRoles(staff...), progressHandler.UpsertWeek)
		progress.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), progressHandler.Delete)
	}

	followups := api.Group("/followups", middleware.JWT(authSvc), middleware.RequireRoles(staff...))
	{
		followups.GET("", followupHandler.List)
		followups.GET("/:id", followupHandler.Get)
		followups.POST("", followupHandler.Create)
		followups.PUT("/:id", followupHandler.Update)
		followups.POST("/:id/complete", followupHandler.Complete)
		followups.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), followupHandler.Delete)
	}

	if exportJobSvc != nil {
		exportHandler := handler.NewExportHandler(exportJobSvc)
		exports := api.Group("/exports")
		{
			// Downloads authenticate through the signed token itself.
			exports.GET("/download/:token", exportHandler.Download)

			authed := exports.Group("", middleware.JWT(authSvc), middleware.RequireRoles(staff...))
			authed.POST("", exportHandler.Create)
			authed.GET("/:id", exportHandler.Status)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	case <-ctx.Done():
		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Errorw("graceful shutdown failed", "error", err)
		}
	}
}
