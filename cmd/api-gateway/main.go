package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/putevi/briefing-api/api/swagger"
	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/handler"
	internalmiddleware "github.com/putevi/briefing-api/internal/middleware"
	"github.com/putevi/briefing-api/internal/models"
	"github.com/putevi/briefing-api/internal/repository"
	"github.com/putevi/briefing-api/internal/service"
	"github.com/putevi/briefing-api/pkg/cache"
	"github.com/putevi/briefing-api/pkg/config"
	"github.com/putevi/briefing-api/pkg/database"
	"github.com/putevi/briefing-api/pkg/export"
	"github.com/putevi/briefing-api/pkg/jobs"
	"github.com/putevi/briefing-api/pkg/logger"
	corsmiddleware "github.com/putevi/briefing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/putevi/briefing-api/pkg/middleware/requestid"
	"github.com/putevi/briefing-api/pkg/storage"
	"github.com/putevi/briefing-api/pkg/telegram"
)

// @title Briefing Roster API
// @version 1.0.0
// @description Safety-briefing roster with compliance analytics, exports and a Telegram side channel
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const photoURLPrefix = "/files/photos"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}
	var cacheService *service.CacheService
	if cacheRepo != nil {
		cacheService = service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled)
	}

	engine, err := compliance.NewEngine(cfg.Compliance.WarningDays, cfg.Compliance.ExpiryDays, compliance.WithLocation(cfg.Compliance.Location()))
	if err != nil {
		logr.Fatal("compliance thresholds", zap.Error(err))
	}

	photoStore, err := storage.NewLocalStorage(cfg.Photos.StorageDir)
	if err != nil {
		logr.Fatal("photo storage", zap.Error(err))
	}
	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	employeeRepo := repository.NewEmployeeRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	userRepo := repository.NewUserRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "briefing-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	employeeService := service.NewEmployeeService(employeeRepo, engine, validate, cacheService, photoStore, service.PhotoConfig{
		MaxBytes:     cfg.Photos.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Photos.AllowedMIMEs,
		URLPrefix:    photoURLPrefix,
	}, cfg.Compliance.TrainingTypes, logr)
	analyticsService := service.NewAnalyticsService(employeeRepo, engine, cacheService, metrics, logr)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Repo:    employeeRepo,
		Engine:  engine,
		Cache:   cacheService,
		Metrics: metrics,
		Logger:  logr,
		Config:  service.DashboardServiceConfig{CacheTTL: cfg.Analytics.CacheTTL},
	})
	exportService := service.NewExportService(employeeRepo, engine, exportStore, signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
		metrics, logr,
		export.NewPDFExporter(cfg.Reports.PDFFontDir, cfg.Reports.PDFFontFamily),
		export.NewXLSXExporter("Инструктажи"))
	organizationService := service.NewOrganizationService(employeeRepo, orgRepo, validate, models.DefaultOrganizationDocs, logr)

	tgClient := telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken, cfg.Telegram.Timeout)
	worker := service.NewNotificationWorker(tgClient, metrics, "", logr)
	queue := jobs.NewQueue("telegram", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Telegram.Workers,
		MaxRetries: cfg.Telegram.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnFailure: func(job jobs.Job, err error) {
			logr.Error("telegram delivery abandoned", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
		},
	})
	queue.Start(ctx)
	defer queue.Stop()

	notificationService := service.NewNotificationService(employeeRepo, engine, tgClient, queue, metrics, logr, service.NotificationConfig{
		Enabled:       cfg.Telegram.Enabled && tgClient.Configured(),
		DefaultChatID: cfg.Telegram.ChatID,
	})
	botService := service.NewBotService(employeeRepo, engine, tgClient, metrics, logr, service.BotConfig{
		WebhookSecret:  cfg.Telegram.WebhookSecret,
		AllowedChatIDs: cfg.Telegram.AllowedChatIDs,
	})

	go exportService.RunCleanup(ctx, cfg.Reports.CleanupInterval)
	go authService.RunSessionCleanup(ctx, userRepo, 6*time.Hour)

	checks := map[string]handler.Pinger{"postgres": db}
	if cacheRepo != nil {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	employeeHandler := handler.NewEmployeeHandler(employeeService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	exportHandler := handler.NewExportHandler(exportService)
	organizationHandler := handler.NewOrganizationHandler(organizationService)
	telegramHandler := handler.NewTelegramHandler(notificationService, botService)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static(photoURLPrefix, cfg.Photos.StorageDir)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/telegram/webhook", telegramHandler.Webhook)
	api.GET("/export/:token", exportHandler.DownloadToken)

	secured := api.Group("", internalmiddleware.JWT(authService))
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/change-password", authHandler.ChangePassword)

	read := secured.Group("", internalmiddleware.ReadAccess())
	read.GET("/employees", employeeHandler.List)
	read.GET("/employees/:id", employeeHandler.Get)
	read.GET("/employees/:id/trainings/status", employeeHandler.TrainingStatuses)
	read.GET("/employees/:id/trainings/export", employeeHandler.ExportTrainings)
	read.GET("/organizations", employeeHandler.Organizations)
	read.GET("/organizations/docs", organizationHandler.Checklists)
	read.GET("/training-types", employeeHandler.TrainingTypes)
	read.GET("/analytics", analyticsHandler.Summary)
	read.GET("/analytics/system", analyticsHandler.System)
	read.GET("/dashboard", dashboardHandler.Overview)
	read.GET("/export/employees", exportHandler.Download)
	read.POST("/export/employees/link", exportHandler.CreateLink)

	write := secured.Group("", internalmiddleware.WriteAccess())
	write.POST("/employees", employeeHandler.Create)
	write.PUT("/employees/:id", employeeHandler.Update)
	write.DELETE("/employees/:id", employeeHandler.Delete)
	write.POST("/employees/:id/retrain", employeeHandler.Retrain)
	write.POST("/employees/:id/photo", employeeHandler.UploadPhoto)
	write.PUT("/organizations/docs/:org", organizationHandler.Toggle)
	write.POST("/telegram/notify", telegramHandler.Notify)
	write.POST("/reports/analytics/telegram", telegramHandler.AnalyticsReport)
	write.POST("/reports/daily/telegram", telegramHandler.DailyReport)
	write.GET("/users", userHandler.List)
	write.GET("/users/:id", userHandler.Get)
	write.POST("/users", userHandler.Create)
	write.PUT("/users/:id", userHandler.Update)
	write.DELETE("/users/:id", userHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "prefix", strings.TrimRight(cfg.APIPrefix, "/"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown", zap.Error(err))
	}
}
