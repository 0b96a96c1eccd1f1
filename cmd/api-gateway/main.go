package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/tutoring-center-api/api/swagger"
	"github.com/noah-isme/tutoring-center-api/internal/handler"
	"github.com/noah-isme/tutoring-center-api/internal/middleware"
	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/repository"
	"github.com/noah-isme/tutoring-center-api/internal/service"
	"github.com/noah-isme/tutoring-center-api/pkg/cache"
	"github.com/noah-isme/tutoring-center-api/pkg/config"
	"github.com/noah-isme/tutoring-center-api/pkg/database"
	"github.com/noah-isme/tutoring-center-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutoring-center-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutoring-center-api/pkg/middleware/requestid"
)

// @title Tutoring Center API
// @version 1.0.0
// @description Enrollment lifecycle and session scheduling engine
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	holidayRepo := repository.NewHolidayRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	extensionRepo := repository.NewExtensionRepository(db)
	makeupRepo := repository.NewMakeupRepository(db)
	renewalRepo := repository.NewRenewalRepository(db)
	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, metricsSvc, logr)

	calendarSvc := service.NewCalendarService(holidayRepo, cacheRepo, cfg.Calendar, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, sessionRepo, calendarSvc, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, enrollmentRepo, calendarSvc, validate, logr)
	extensionSvc := service.NewExtensionService(extensionRepo, sessionRepo, enrollmentRepo, calendarSvc, validate, logr)
	makeupSvc := service.NewMakeupService(makeupRepo, sessionRepo, enrollmentRepo, calendarSvc, validate, logr)
	renewalSvc := service.NewRenewalService(renewalRepo, calendarSvc, cacheRepo, cfg.Renewals, logr)

	holidayHandler := handler.NewHolidayHandler(calendarSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	extensionHandler := handler.NewExtensionHandler(extensionSvc, metricsSvc)
	makeupHandler := handler.NewMakeupHandler(makeupSvc, metricsSvc)
	renewalHandler := handler.NewRenewalHandler(renewalSvc, cfg.Exports.Enabled)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTutor)

	holidays := api.Group("/holidays")
	holidays.GET("", staff, holidayHandler.List)
	holidays.POST("", adminOnly, holidayHandler.Create)
	holidays.DELETE("/:id", adminOnly, holidayHandler.Delete)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", staff, enrollmentHandler.List)
	enrollments.GET("/:id", staff, enrollmentHandler.Get)
	enrollments.POST("", adminOnly, enrollmentHandler.Create)
	enrollments.POST("/preview", staff, enrollmentHandler.Preview)
	enrollments.POST("/:id/confirm-payment", adminOnly, enrollmentHandler.ConfirmPayment)
	enrollments.POST("/:id/cancel", adminOnly, enrollmentHandler.Cancel)
	enrollments.POST("/:id/renew", adminOnly, enrollmentHandler.Renew)

	sessions := api.Group("/sessions")
	sessions.GET("", staff, sessionHandler.List)
	sessions.GET("/:id", staff, sessionHandler.Get)
	sessions.PATCH("/:id", staff, sessionHandler.Transition)

	extensions := api.Group("/extension-requests")
	extensions.GET("", staff, extensionHandler.List)
	extensions.POST("", staff, extensionHandler.Create)
	extensions.PATCH("/:id/approve", adminOnly, extensionHandler.Approve)
	extensions.PATCH("/:id/reject", adminOnly, extensionHandler.Reject)

	makeups := api.Group("/makeup-proposals")
	makeups.GET("", staff, makeupHandler.List)
	makeups.GET("/:id", staff, makeupHandler.Get)
	makeups.POST("", staff, makeupHandler.Create)
	makeups.POST("/:id/book", staff, makeupHandler.Book)
	makeups.PATCH("/slots/:id/approve", staff, makeupHandler.ApproveSlot)
	makeups.PATCH("/slots/:id/reject", staff, makeupHandler.RejectSlot)

	renewals := api.Group("/renewals")
	renewals.GET("", adminOnly, renewalHandler.Report)
	renewals.GET("/export", adminOnly, renewalHandler.Export)

	api.GET("/metrics/summary", adminOnly, metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
