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

	_ "github.com/noah-isme/ict-admin-api/api/swagger"
	"github.com/noah-isme/ict-admin-api/internal/handler"
	"github.com/noah-isme/ict-admin-api/internal/middleware"
	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/internal/repository"
	"github.com/noah-isme/ict-admin-api/internal/service"
	"github.com/noah-isme/ict-admin-api/pkg/cache"
	"github.com/noah-isme/ict-admin-api/pkg/config"
	"github.com/noah-isme/ict-admin-api/pkg/database"
	"github.com/noah-isme/ict-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ict-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ict-admin-api/pkg/middleware/requestid"
)

// @title ICT Admin API
// @version 1.0.0
// @description Role based administration backend for courses, enrollments and fee payments
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, permission cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, service.CacheOptions{
		Metrics:    metricsSvc,
		DefaultTTL: cfg.Permissions.CacheTTL,
		Logger:     logr,
		Enabled:    cfg.Permissions.CacheEnabled && redisClient != nil,
		Namespace:  "ict-admin",
	})
	permissionSvc := service.NewPermissionService(userRepo, cacheSvc, cfg.Permissions.CacheTTL, logr)

	authSvc := service.NewAuthService(userRepo, permissionSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, permissionSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, userRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, userRepo, validate, logr, cfg.Dashboard.OverdueAfterDays)
	paymentSvc := service.NewPaymentService(paymentRepo, enrollmentRepo, validate, logr, cfg.Location())
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Enrollments: enrollmentRepo,
		Payments:    paymentRepo,
		Courses:     courseRepo,
		Staff:       userRepo,
		Links:       service.NewLinkResolver(cfg.AdminLinks.BaseURL, logr),
		Metrics:     metricsSvc,
		Logger:      logr,
		Config: service.DashboardServiceConfig{
			WidgetLimit:       cfg.Dashboard.WidgetLimit,
			UpcomingBatchDays: cfg.Dashboard.UpcomingBatchDays,
			ApproachingDays:   cfg.Dashboard.ApproachingDays,
			NewEnrollmentDays: cfg.Dashboard.NewEnrollmentDays,
			OverdueAfterDays:  cfg.Dashboard.OverdueAfterDays,
			QueryTimeout:      cfg.Dashboard.QueryTimeout,
			Concurrent:        cfg.Dashboard.ConcurrentAggregates,
			Location:          cfg.Location(),
		},
	})

	auditDispatcher := service.NewAuditDispatcher(userRepo, logr, service.AuditDispatcherConfig{Workers: 2, MaxRetries: 3})
	auditDispatcher.Start(ctx)

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	authHandler := handler.NewAuthHandler(authSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	userHandler := handler.NewUserHandler(userSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/health", "/ready", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	registerRoutes(api, routeDeps{
		auth:        authHandler,
		dashboard:   dashboardHandler,
		courses:     courseHandler,
		enrollments: enrollmentHandler,
		payments:    paymentHandler,
		users:       userHandler,
		metrics:     metricsHandler,
		jwt:         middleware.JWT(authSvc),
		permissions: middleware.LoadPermissions(permissionSvc),
		audit:       auditDispatcher,
		logger:      logr,
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
	if err := auditDispatcher.Stop(shutdownCtx); err != nil {
		logr.Error("audit queue did not drain", zap.Error(err))
	}
}

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type routeDeps struct {
	auth        *handler.AuthHandler
	dashboard   *handler.DashboardHandler
	courses     *handler.CourseHandler
	enrollments *handler.EnrollmentHandler
	payments    *handler.PaymentHandler
	users       *handler.UserHandler
	metrics     *handler.MetricsHandler
	jwt         gin.HandlerFunc
	permissions gin.HandlerFunc
	audit       auditStore
	logger      *zap.Logger
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	api.POST("/auth/login", d.auth.Login)
	api.POST("/auth/refresh", d.auth.Refresh)

	secured := api.Group("")
	secured.Use(d.jwt, d.permissions)

	secured.POST("/auth/logout", d.auth.Logout)
	secured.GET("/me", d.auth.Me)
	secured.GET("/me/permissions", d.dashboard.Permissions)
	secured.GET("/dashboard", d.dashboard.Dashboard)
	secured.GET("/courses", d.courses.List)

	catalogue := middleware.RequireCapabilities(models.CapITAdmin, models.CapSuperAdmin)
	secured.POST("/courses", catalogue, d.courses.Create)
	secured.DELETE("/courses/:id", catalogue, d.courses.Delete)
	secured.POST("/batches", catalogue, d.courses.CreateBatch)
	secured.DELETE("/batches/:id", catalogue, d.courses.DeleteBatch)

	registrar := middleware.RequireCapabilities(models.CapRegistrar, models.CapSuperAdmin)
	secured.POST("/enrollments", registrar, d.enrollments.Create)
	secured.PATCH("/enrollments/:id/status", registrar, d.enrollments.UpdateStatus)
	secured.DELETE("/enrollments/:id", registrar, d.enrollments.Delete)
	secured.POST("/enrollments/:id/archive", registrar, d.enrollments.Archive)

	financeView := func(resource string) gin.HandlerFunc {
		return middleware.Audit(d.audit, d.logger, models.AuditActionFinanceView, resource)
	}
	finance := middleware.RequireCapabilities(models.CapFinance, models.CapSuperAdmin)
	secured.GET("/enrollments/:id/balance",
		middleware.RequireCapabilities(models.CapRegistrar, models.CapFinance, models.CapSuperAdmin),
		financeView("enrollment_balance"),
		d.enrollments.Balance)
	secured.GET("/enrollments/:id/payments", finance, financeView("payments"), d.payments.ListForEnrollment)
	secured.POST("/payments", finance, d.payments.Record)
	secured.GET("/finance/stats", finance, financeView("finance_stats"), d.dashboard.FinanceStats)

	staff := middleware.RequireCapabilities(models.CapITAdmin, models.CapSuperAdmin)
	secured.GET("/users/:id", staff, d.users.Get)
	secured.POST("/users", staff, d.users.Create)
	secured.PUT("/users/:id/groups", staff, d.users.SetGroups)
	secured.PATCH("/users/:id/role", staff, d.users.UpdateRole)
	secured.PATCH("/users/:id/active", staff, d.users.SetActive)
	secured.GET("/system/metrics", staff, d.metrics.SystemMetrics)
}
