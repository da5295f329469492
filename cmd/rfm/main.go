package main

import (
	"fmt"
	"os"

	"bonuspark/internal/cache"
	"bonuspark/internal/config"
	"bonuspark/internal/database"
	"bonuspark/internal/logger"
	"bonuspark/internal/services"
)

// Batch RFM recalculation, meant to be run from cron. The API exposes the
// same operation behind the job endpoint; this binary exists for
// deployments without an internal scheduler.
func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("RFM run error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	manager, err := database.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	var c *cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Get().Warnw("redis unavailable, running without cache", "error", err)
			c = nil
		}
	}

	rfmService := services.NewRFMService(manager.DB(), c)
	result, err := rfmService.CalculateRFMForAllUsers()
	if err != nil {
		return err
	}

	logger.Get().Infof("RFM run complete: %d processed, %d errors, %d total",
		result.Processed, result.Errors, result.Total)
	return nil
}
