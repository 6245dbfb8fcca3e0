package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmacare/pharmacy-backend/config"
	"github.com/pharmacare/pharmacy-backend/internal/app/controller"
	"github.com/pharmacare/pharmacy-backend/internal/app/repository"
	"github.com/pharmacare/pharmacy-backend/internal/app/service"
	"github.com/pharmacare/pharmacy-backend/internal/db"
	"github.com/pharmacare/pharmacy-backend/internal/middleware"
	"github.com/pharmacare/pharmacy-backend/internal/router"
	"github.com/pharmacare/pharmacy-backend/internal/scheduler"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	pkgredis "github.com/pharmacare/pharmacy-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Server.Environment == "development",
	})

	logger.Info("Starting Pharmacy Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   cfg.Log.Level,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(db.GetDB()); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	if cfg.Server.SeedData {
		if err := db.Seed(db.GetDB()); err != nil {
			logger.Warn("Failed to seed database", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Token blacklist is optional; without it logout only discards the token client side
	var revoker service.TokenRevoker
	var revocations middleware.RevocationChecker
	if cfg.Redis.Enabled {
		client, err := pkgredis.Connect(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", err)
		}
		defer client.Close()

		blacklist := pkgredis.NewTokenBlacklist(client)
		revoker = blacklist
		revocations = blacklist
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	medicationRepo := repository.NewMedicationRepository(db.GetDB())
	cartRepo := repository.NewCartRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(userRepo, revoker, cfg.JWT.Secret, cfg.JWT.Expiry)
	medicationService := service.NewMedicationService(medicationRepo)
	cartService := service.NewCartService(cartRepo, medicationRepo, cfg.Cart.MaxRetries)

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	medicationController := controller.NewMedicationController(medicationService)
	cartController := controller.NewCartController(cartService)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, revocations)

	r := router.NewRouter(
		authController,
		medicationController,
		cartController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	cleanupScheduler := scheduler.NewCartCleanupScheduler(cartService, cfg.Cart.CleanupSchedule)
	if err := cleanupScheduler.Start(); err != nil {
		logger.Fatal("Failed to start cart cleanup scheduler", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	cleanupScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server stopped successfully")
}
