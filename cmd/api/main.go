package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bonuspark/internal/cache"
	"bonuspark/internal/config"
	"bonuspark/internal/crm"
	"bonuspark/internal/database"
	"bonuspark/internal/handlers"
	"bonuspark/internal/logger"
	"bonuspark/internal/metrics"
	"bonuspark/internal/middleware"
	"bonuspark/internal/notify"
	"bonuspark/internal/registry"
	"bonuspark/internal/services"
	"bonuspark/internal/validator"
)

// @title           Bonuspark API
// @version         1.0
// @description     Loyalty program backend: points ledger, tier engine, and RFM segmentation.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a service token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	reg := buildRegistry(appConfig, dbManager.DB())

	userService, err := resolve[services.UserServicer](reg, "users")
	if err != nil {
		return err
	}
	pointsService, err := resolve[services.PointsServicer](reg, "points")
	if err != nil {
		return err
	}
	statusService, err := resolve[services.StatusServicer](reg, "status")
	if err != nil {
		return err
	}
	rfmService, err := resolve[services.RFMServicer](reg, "rfm")
	if err != nil {
		return err
	}
	auditService, err := resolve[services.AuditServicer](reg, "audit")
	if err != nil {
		return err
	}

	userHandler := handlers.NewUserHandler(userService, auditService)
	pointsHandler := handlers.NewPointsHandler(pointsService, auditService)
	statusHandler := handlers.NewStatusHandler(statusService)
	rfmHandler := handlers.NewRFMHandler(rfmService)

	validator.Register()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(metrics.HTTPMiddleware())
	router.Use(middleware.ErrorHandler())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	users := protected.Group("/users")
	users.POST("", userHandler.CreateUser)
	users.GET("/:id", userHandler.GetUser)
	users.GET("/:id/exists", userHandler.UserExists)
	users.PUT("/:id", userHandler.UpdateUser)
	users.GET("/:id/balance", pointsHandler.GetBalance)
	users.GET("/:id/history", pointsHandler.GetHistory)

	points := protected.Group("/points")
	points.POST("/credit", pointsHandler.CreditPoints)
	points.POST("/debit", pointsHandler.DebitPoints)
	points.POST("/transfer", pointsHandler.TransferPoints)
	points.POST("/activity", pointsHandler.AwardActivity)
	points.GET("/stats", pointsHandler.GetStats)

	loyalty := protected.Group("/loyalty")
	loyalty.GET("/status", statusHandler.GetStatus)
	loyalty.GET("/progress", statusHandler.GetProgress)
	loyalty.POST("/validate-usage", statusHandler.ValidateUsage)
	loyalty.POST("/purchase", statusHandler.CalculatePurchase)
	loyalty.GET("/recommendations", statusHandler.GetRecommendations)
	loyalty.GET("/tiers", statusHandler.GetTiers)

	rfm := protected.Group("/rfm")
	rfm.GET("/users/:external_id", rfmHandler.GetUserRFM)
	rfm.GET("/segments", rfmHandler.GetSegments)
	rfm.GET("/segments/summary", rfmHandler.GetSummary)
	rfm.GET("/segments/:name/users", rfmHandler.GetSegmentUsers)

	jobs := v1.Group("/jobs")
	jobs.Use(middleware.JobAuthMiddleware(appConfig.JobAPIKey))
	jobs.POST("/rfm/recalculate", rfmHandler.Recalculate)

	log.Infof("Starting Bonuspark backend server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}

// buildRegistry declares the process wiring. Services receive their
// dependencies through constructors; the registry only memoizes the
// singletons for the boundary to resolve.
func buildRegistry(cfg *config.Config, db *gorm.DB) *registry.Registry {
	reg := registry.New()

	reg.Register("cache", func() (any, error) {
		if cfg.RedisAddr == "" {
			return (*cache.Cache)(nil), nil
		}
		c, err := cache.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Get().Warnw("redis unavailable, running without cache", "error", err)
			return (*cache.Cache)(nil), nil
		}
		return c, nil
	})

	reg.Register("notifier", func() (any, error) {
		if cfg.TelegramBotToken == "" {
			return notify.Notifier(notify.NopNotifier{}), nil
		}
		n, err := notify.NewTelegramNotifier(cfg.TelegramBotToken)
		if err != nil {
			logger.Get().Warnw("telegram unavailable, running without notifications", "error", err)
			return notify.Notifier(notify.NopNotifier{}), nil
		}
		return notify.Notifier(n), nil
	})

	reg.Register("status", func() (any, error) {
		return services.NewStatusService(services.DefaultTiers()), nil
	})

	reg.Register("points", func() (any, error) {
		status, err := resolve[services.StatusServicer](reg, "status")
		if err != nil {
			return nil, err
		}
		c, err := resolve[*cache.Cache](reg, "cache")
		if err != nil {
			return nil, err
		}
		notifier, err := resolve[notify.Notifier](reg, "notifier")
		if err != nil {
			return nil, err
		}
		return services.NewPointsService(db, status, services.DefaultAwards(), c, notifier), nil
	})

	reg.Register("users", func() (any, error) {
		points, err := resolve[services.PointsServicer](reg, "points")
		if err != nil {
			return nil, err
		}
		return services.NewUserService(db, points, crm.NopSyncer{}), nil
	})

	reg.Register("rfm", func() (any, error) {
		c, err := resolve[*cache.Cache](reg, "cache")
		if err != nil {
			return nil, err
		}
		return services.NewRFMService(db, c), nil
	})

	reg.Register("audit", func() (any, error) {
		return services.NewAuditService(db), nil
	})

	return reg
}

// resolve looks up a registry entry and asserts its type.
func resolve[T any](reg *registry.Registry, name string) (T, error) {
	var zero T
	v, err := reg.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %s has unexpected type %T", name, v)
	}
	return typed, nil
}
