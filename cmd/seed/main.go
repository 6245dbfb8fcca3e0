package main

import (
	"github.com/pharmacare/pharmacy-backend/config"
	"github.com/pharmacare/pharmacy-backend/internal/db"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
)

// Seeds the catalog without starting the API, for environments that run
// with SEED_DATA=false.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to connect to database", err)
	}
	defer db.Close()

	if err := db.Migrate(db.GetDB()); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if err := db.Seed(db.GetDB()); err != nil {
		logger.Fatal("Failed to seed database", err)
	}

	logger.Info("Seed completed successfully")
}
