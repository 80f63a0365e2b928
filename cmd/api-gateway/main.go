package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/VipuDevAI/prashnakosh-api/api/swagger"
	"github.com/VipuDevAI/prashnakosh-api/internal/handler"
	"github.com/VipuDevAI/prashnakosh-api/internal/middleware"
	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/internal/repository"
	"github.com/VipuDevAI/prashnakosh-api/internal/service"
	"github.com/VipuDevAI/prashnakosh-api/pkg/cache"
	"github.com/VipuDevAI/prashnakosh-api/pkg/config"
	"github.com/VipuDevAI/prashnakosh-api/pkg/database"
	"github.com/VipuDevAI/prashnakosh-api/pkg/jobs"
	"github.com/VipuDevAI/prashnakosh-api/pkg/logger"

	corsmiddleware "github.com/VipuDevAI/prashnakosh-api/pkg/middleware/cors"
	reqidmiddleware "github.com/VipuDevAI/prashnakosh-api/pkg/middleware/requestid"
)

// @title Prashnakosh API
// @version 0.1.0
// @description Academic workflow and access control engine for multi-school exam platforms
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, analytics cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	wingRepo := repository.NewWingRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	blueprintRepo := repository.NewBlueprintRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	scopeSvc := service.NewScopeService(wingRepo, logr)
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	questionSvc := service.NewQuestionService(questionRepo, scopeSvc, validate, logr)
	blueprintSvc := service.NewBlueprintService(blueprintRepo, scopeSvc, validate, logr)
	paperSvc := service.NewPaperService(paperRepo, blueprintRepo, questionRepo, auditRepo, scopeSvc, validate, logr)
	chapterSvc := service.NewChapterService(chapterRepo, attemptRepo, scopeSvc, validate, logr)
	chapterSvc.SetMetrics(metricsSvc)
	attemptSvc := service.NewAttemptService(attemptRepo, chapterRepo, scopeSvc, validate, logr)
	attemptSvc.SetCacheInvalidator(cacheRepo)
	riskSvc := service.NewRiskService(attemptRepo, userRepo, cacheRepo, scopeSvc, cfg.Risk, cfg.Analytics, logr)
	riskSvc.SetMetrics(metricsSvc)

	// Background sweep.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sweepTicker *jobs.Periodic
	if cfg.Sweep.Enabled {
		sweepQueue := jobs.NewQueue("chapter-sweep", chapterSvc.RunSweep, jobs.QueueConfig{
			Workers:    cfg.Sweep.Workers,
			MaxRetries: cfg.Sweep.Retries,
			Logger:     logr,
		})
		sweepQueue.Start(ctx)
		defer sweepQueue.Stop()

		sweepTicker = jobs.NewPeriodic(sweepQueue, service.SweepJobType, cfg.Sweep.Interval, logr)
		sweepTicker.Start(ctx)
		defer sweepTicker.Stop()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	questionHandler := handler.NewQuestionHandler(questionSvc, scopeSvc)
	blueprintHandler := handler.NewBlueprintHandler(blueprintSvc, scopeSvc)
	paperHandler := handler.NewPaperHandler(paperSvc, scopeSvc)
	chapterHandler := handler.NewChapterHandler(chapterSvc, attemptSvc, scopeSvc)
	analyticsHandler := handler.NewAnalyticsHandler(riskSvc, metricsSvc, scopeSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/auth/me", authHandler.Me)

	staff := []models.UserRole{
		models.RoleTeacher, models.RoleHOD, models.RolePrincipal,
		models.RoleExamCommittee, models.RoleAdmin, models.RoleSuperAdmin,
	}

	questions := protected.Group("/questions", middleware.RequireRoles(staff...))
	questions.GET("", questionHandler.List)
	questions.POST("", questionHandler.Create)
	questions.GET("/:id", questionHandler.Get)
	questions.PUT("/:id", questionHandler.Update)
	questions.POST("/:id/submit", questionHandler.Submit)
	questions.POST("/:id/review", questionHandler.Review)

	blueprints := protected.Group("/blueprints", middleware.RequireRoles(staff...))
	blueprints.GET("", blueprintHandler.List)
	blueprints.POST("", blueprintHandler.Create)
	blueprints.GET("/:id", blueprintHandler.Get)
	blueprints.POST("/:id/approve", blueprintHandler.Approve)

	papers := protected.Group("/papers", middleware.RequireRoles(staff...))
	papers.GET("", paperHandler.List)
	papers.POST("/generate", paperHandler.Generate)
	papers.GET("/:id", paperHandler.Get)
	papers.POST("/:id/advance", paperHandler.Advance)
	papers.POST("/:id/lock", paperHandler.Lock)
	papers.POST("/:id/unlock", paperHandler.Unlock)
	papers.PUT("/:id/print-meta", paperHandler.PrintMeta)
	papers.GET("/:id/audit", paperHandler.Audit)

	chapters := protected.Group("/chapters")
	chapters.GET("", chapterHandler.List)
	chapters.GET("/:id", chapterHandler.Get)
	chapters.GET("/:id/can-attempt", chapterHandler.CanAttempt)
	chapters.POST("/:id/lock", chapterHandler.Lock)
	chapters.POST("/:id/unlock", chapterHandler.Unlock)
	chapters.PUT("/:id/deadline", chapterHandler.SetDeadline)
	chapters.POST("/:id/reveal-scores", chapterHandler.RevealScores)

	attempts := protected.Group("/attempts")
	attempts.POST("", chapterHandler.SubmitAttempt)
	attempts.GET("", chapterHandler.AttemptHistory)

	analytics := protected.Group("/analytics", middleware.RequireRoles(
		models.RoleHOD, models.RolePrincipal, models.RoleExamCommittee,
		models.RoleAdmin, models.RoleSuperAdmin,
	))
	analytics.GET("/at-risk", analyticsHandler.AtRisk)
	analytics.GET("/alerts", analyticsHandler.Alerts)
	analytics.GET("/grade-performance", analyticsHandler.GradePerformance)
	analytics.GET("/subject-health", analyticsHandler.SubjectHealth)
	analytics.GET("/snapshot", analyticsHandler.Snapshot)
	analytics.GET("/system", analyticsHandler.System)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
