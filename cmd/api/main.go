package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/bucket-harvest/internal/api"
	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/storage"
	"github.com/kurihiro0119/bucket-harvest/internal/storage/postgres"
	"github.com/kurihiro0119/bucket-harvest/internal/storage/sqlite"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateStorage(); err != nil {
		logger.Error("invalid storage configuration", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to initialize PostgreSQL storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to initialize SQLite storage", "error", err)
			os.Exit(1)
		}
	}
	defer store.Close()

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRoutes(api.NewHandler(store), logger)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger.Info("starting API server", "addr", addr, "storage", cfg.StorageType)

	if err := router.Run(addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
