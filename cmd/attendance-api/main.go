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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/chayanC7mondal/project-sync-sub000/api/swagger"
	"github.com/chayanC7mondal/project-sync-sub000/internal/handler"
	internalmiddleware "github.com/chayanC7mondal/project-sync-sub000/internal/middleware"
	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	"github.com/chayanC7mondal/project-sync-sub000/internal/repository"
	"github.com/chayanC7mondal/project-sync-sub000/internal/service"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/cache"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/config"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/database"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/export"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/hearingcode"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/jobs"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/logger"
	corsmiddleware "github.com/chayanC7mondal/project-sync-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/chayanC7mondal/project-sync-sub000/pkg/middleware/requestid"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/notify"
)

// @title Hearing Attendance API
// @version 1.0.0
// @description Attendance verification, reminders and escalation for court hearings
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// lock and limiter degrade to single-process mode
		logr.Warn("redis unavailable, continuing without it", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	codec, err := hearingcode.New(cfg.Codes.Secret)
	if err != nil {
		logr.Fatal("failed to init hearing codes", zap.Error(err))
	}

	loc := cfg.Attendance.Location()
	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	hearingRepo := repository.NewHearingRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	attendeeRepo := repository.NewAttendeeRepository(db)
	triggerRepo := repository.NewTriggerRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})
	attendanceSvc := service.NewAttendanceService(hearingRepo, attendanceRepo, attendeeRepo, codec, cacheRepo, metricsSvc, validate, logr.Named("attendance"), service.AttendanceConfig{
		GracePeriod:        cfg.Attendance.GracePeriod,
		RequireOpenHearing: cfg.Attendance.RequireOpenHearing,
		Location:           loc,
		MaxFailedAttempts:  cfg.Attendance.MaxFailedAttempts,
		AttemptWindow:      cfg.Attendance.AttemptWindow,
	})
	hearingSvc := service.NewHearingService(hearingRepo, attendanceRepo, attendeeRepo, codec,
		export.NewPDFExporter(loc), export.NewCSVExporter(loc), validate, logr.Named("hearings"))
	notificationSvc := service.NewNotificationService(notificationRepo,
		smsGateway(cfg.Notifications.SMSPrimary), smsGateway(cfg.Notifications.SMSFallback), mailer(cfg.Notifications),
		metricsSvc, logr.Named("notifications"), service.DispatcherConfig{
			SMSEnabled:      cfg.Notifications.SMSEnabled,
			EmailEnabled:    cfg.Notifications.EmailEnabled,
			ProviderTimeout: cfg.Notifications.ProviderTimeout,
		})

	dispatchQueue := jobs.NewQueue("notifications", notificationSvc.HandleJob, jobs.QueueConfig{
		Workers:      cfg.Scheduler.Workers,
		DrainTimeout: 10 * time.Second,
		Logger:       logr.Named("queue"),
	})
	// outlives the signal context so Stop can flush pending reminders
	dispatchQueue.Start(context.Background())
	defer dispatchQueue.Stop()

	hostname, _ := os.Hostname()
	scheduler := service.NewReminderScheduler(hearingRepo, attendanceRepo, triggerRepo, cacheRepo, attendanceSvc, attendeeRepo,
		dispatchQueue, metricsSvc, logr.Named("scheduler"), service.SchedulerConfig{
			Interval:                cfg.Scheduler.Interval,
			LockTTL:                 cfg.Scheduler.LockTTL,
			Concurrency:             cfg.Scheduler.Concurrency,
			OfficerAbsenceThreshold: cfg.Scheduler.OfficerAbsenceThreshold,
			Location:                loc,
			Owner:                   fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		})
	if cfg.Scheduler.Enabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logr.Fatal("invalid trusted proxies", zap.Error(err))
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
		"postgres": pingDB(db),
		"redis":    cacheRepo.Ping,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		tokens:        tokenSvc,
		logger:        logr,
		attendance:    handler.NewAttendanceHandler(attendanceSvc),
		hearings:      handler.NewHearingHandler(hearingSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	tokens        internalmiddleware.TokenValidator
	logger        *zap.Logger
	attendance    *handler.AttendanceHandler
	hearings      *handler.HearingHandler
	notifications *handler.NotificationHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	auth := internalmiddleware.JWT(d.tokens)
	liaison := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleLiaison)
	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleLiaison, models.RoleSupervisor)
	attendees := internalmiddleware.RequireRoles(models.RoleOfficer, models.RoleWitness)

	attendance := api.Group("/attendance")
	attendance.POST("/mark", auth, attendees, d.attendance.Mark)
	attendance.POST("/scan", internalmiddleware.OptionalJWT(d.tokens), d.attendance.Scan)
	attendance.POST("/records/:id/override", auth, liaison,
		internalmiddleware.Audit(d.logger, "attendance.override", "attendance_record"), d.attendance.Override)
	attendance.PUT("/records/:id/absence-reason", auth, attendees, d.attendance.AbsenceReason)

	hearings := api.Group("/hearings", auth)
	hearings.POST("", liaison, internalmiddleware.Audit(d.logger, "hearing.schedule", "hearing_session"), d.hearings.Create)
	hearings.GET("/:id", staff, d.hearings.Get)
	hearings.PATCH("/:id/status", liaison, internalmiddleware.Audit(d.logger, "hearing.status", "hearing_session"), d.hearings.UpdateStatus)
	hearings.GET("/:id/attendance", staff, d.hearings.Attendance)
	hearings.GET("/:id/attendance.csv", staff, d.hearings.RosterCSV)
	hearings.GET("/:id/sheet.pdf", liaison, d.hearings.Sheet)
	hearings.GET("/:id/qr.png", liaison, d.hearings.QR)

	notifications := api.Group("/notifications", auth)
	notifications.GET("", d.notifications.List)
	notifications.GET("/unread-count", d.notifications.UnreadCount)
	notifications.PATCH("/:id/read", d.notifications.MarkRead)
}

func smsGateway(cfg config.SMSGatewayConfig) notify.SMSSender {
	if cfg.URL == "" {
		return nil
	}
	return notify.NewHTTPGateway(cfg.Name, cfg.URL, cfg.APIKey, cfg.Sender)
}

func mailer(cfg config.NotificationsConfig) notify.Mailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	return notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
}

func pingDB(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
