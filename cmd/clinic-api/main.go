package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/clinic-queue-api/api/swagger"
	"github.com/noah-isme/clinic-queue-api/internal/handler"
	"github.com/noah-isme/clinic-queue-api/internal/middleware"
	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/notifier"
	"github.com/noah-isme/clinic-queue-api/internal/repository"
	"github.com/noah-isme/clinic-queue-api/internal/scheduler"
	"github.com/noah-isme/clinic-queue-api/internal/service"
	"github.com/noah-isme/clinic-queue-api/pkg/cache"
	"github.com/noah-isme/clinic-queue-api/pkg/config"
	"github.com/noah-isme/clinic-queue-api/pkg/database"
	"github.com/noah-isme/clinic-queue-api/pkg/jobs"
	"github.com/noah-isme/clinic-queue-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/clinic-queue-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/clinic-queue-api/pkg/middleware/requestid"
	"github.com/noah-isme/clinic-queue-api/pkg/storage"
)

// @title Clinic Queue API
// @version 1.0.0
// @description Appointment slots, walk-in tokens and live queue management for clinics
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, slot claims fall back to the database unique index", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := notifier.NewPublisher(cfg.AMQP, logr)
	if err != nil {
		logr.Warn("amqp unavailable, queue events disabled", zap.Error(err))
	}
	if publisher != nil {
		defer publisher.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	clinicRepo := repository.NewClinicRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Queue events fan out through the in-process dispatcher so booking and
	// sweep paths never block on the broker.
	var eventQueue *jobs.Queue
	if publisher != nil {
		eventQueue = jobs.NewQueue("queue-events", func(ctx context.Context, job jobs.Job) error {
			change, ok := job.Payload.(models.StatusChange)
			if !ok {
				return fmt.Errorf("unexpected payload type %T", job.Payload)
			}
			return publisher.PublishStatusChange(ctx, change)
		}, jobs.QueueConfig{Workers: 2, Logger: logr})
		eventQueue.Start(ctx)
		defer eventQueue.Stop()
	}

	// Services.
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "clinic-queue-api",
		Audience:           []string{"clinic-queue"},
	})
	userService := service.NewUserService(userRepo, validate, logr)
	clinicService := service.NewClinicService(clinicRepo, validate, logr)
	doctorService := service.NewDoctorService(doctorRepo, clinicRepo, validate, logr)
	scheduleService := service.NewScheduleService(doctorRepo, availabilityRepo, cfg.Scheduler.GridCacheSize, logr)
	availabilityService := service.NewAvailabilityService(availabilityRepo, appointmentRepo, scheduleService, validate, logr)

	policy := scheduler.CapacityPolicy{
		BookingBuffer: cfg.Scheduler.BookingBuffer,
		WalkInRatio:   cfg.Scheduler.WalkInReserveRatio,
	}
	bookingService := service.NewBookingService(appointmentRepo, scheduleService, cacheRepo, policy,
		cfg.Scheduler.LookAheadDays, cfg.Scheduler.SlotClaimTTL, metrics, validate, logr)
	delayService := service.NewDelayService(doctorRepo, appointmentRepo, scheduleService, metrics, logr)

	var events service.EventSink
	if eventQueue != nil {
		events = eventQueue
	}
	queueService := service.NewQueueService(appointmentRepo, cacheRepo, events, metrics, cfg.Queue.CacheTTL, logr)

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportService = service.NewExportService(queueService, doctorRepo, store, signer,
			service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr, nil, nil)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	clinicHandler := handler.NewClinicHandler(clinicService)
	doctorHandler := handler.NewDoctorHandler(doctorService, delayService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	queueHandler := handler.NewQueueHandler(queueService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	// Waiting-room displays poll the queue without credentials; staff clients
	// still send their token and get it attached.
	api.GET("/doctors/:id/queue", middleware.OptionalJWT(authService), queueHandler.DoctorQueue)

	if exportService != nil {
		exportHandler := handler.NewExportHandler(exportService)
		// The signed token is the authorization for downloads.
		api.GET("/exports/:token", exportHandler.Download)
		api.POST("/doctors/:id/queue/export", middleware.JWT(authService),
			middleware.RequireRoles(models.RoleSuperAdmin, models.RoleClinicAdmin, models.RoleNurse),
			exportHandler.Generate)

		go runExportCleanup(ctx, exportService, cfg.Exports.CleanupInterval, logr)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	{
		admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleClinicAdmin)
		staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleClinicAdmin, models.RoleNurse)

		users := protected.Group("/users")
		{
			users.GET("", admins, userHandler.List)
			users.GET("/:id", middleware.RBAC("SUPERADMIN", "CLINIC_ADMIN", "SELF"), userHandler.Get)
			users.POST("", admins, userHandler.Create)
			users.PUT("/:id", admins, userHandler.Update)
			users.DELETE("/:id", admins, userHandler.Delete)
		}

		clinics := protected.Group("/clinics")
		{
			clinics.GET("", clinicHandler.List)
			clinics.GET("/:id", clinicHandler.Get)
			clinics.POST("", middleware.RequireRoles(models.RoleSuperAdmin), clinicHandler.Create)
			clinics.PUT("/:id", middleware.RequireRoles(models.RoleSuperAdmin), clinicHandler.Update)
		}

		doctors := protected.Group("/doctors")
		{
			doctors.GET("", doctorHandler.List)
			doctors.GET("/:id", doctorHandler.Get)
			doctors.POST("", admins, doctorHandler.Create)
			doctors.PUT("/:id", admins, doctorHandler.Update)
			doctors.PATCH("/:id/status", staff, doctorHandler.UpdateStatus)
			doctors.GET("/:id/delay", doctorHandler.Delay)

			doctors.GET("/:id/availability", availabilityHandler.WeeklyPlan)
			doctors.PUT("/:id/availability", staff, availabilityHandler.UpsertWeeklyPlan)
			doctors.POST("/:id/extensions", staff, availabilityHandler.ExtendSession)
			doctors.POST("/:id/leave", staff, availabilityHandler.MarkLeave)
			doctors.DELETE("/:id/leave", staff, availabilityHandler.RemoveLeave)

			doctors.GET("/:id/next-slot", bookingHandler.NextSlot)
			doctors.GET("/:id/slots", bookingHandler.DaySlots)
		}

		appointments := protected.Group("/appointments")
		{
			appointments.POST("", bookingHandler.Book)
			appointments.POST("/walk-in", staff, bookingHandler.WalkIn)
			appointments.DELETE("/:id", bookingHandler.Cancel)
		}

		protected.POST("/queue/sweep", staff, queueHandler.Sweep)
	}

	if cfg.Queue.SweepEnabled {
		go queueService.RunSweeper(ctx, cfg.Queue.SweepInterval)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// runExportCleanup prunes expired export files on a fixed interval.
func runExportCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("export cleanup removed files", zap.Int("count", len(removed)))
			}
		}
	}
}
