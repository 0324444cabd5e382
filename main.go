package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/Muhonne/reqquli-sub000/pkg/config"
	"github.com/Muhonne/reqquli-sub000/pkg/database"
	"github.com/Muhonne/reqquli-sub000/pkg/handlers"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	if err := database.RunMigrations(cfg.Database.URL(), cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.URL(),
		MaxConnections:  cfg.Database.MaxConnections,
		MaxConnLifetime: cfg.Database.ConnLifetime(),
		MaxConnIdleTime: cfg.Database.ConnIdleTime(),
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	mux := http.NewServeMux()
	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	logger.Info("Starting reqquli core",
		zap.String("addr", cfg.BindAddr+":"+cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))
	if err := http.ListenAndServe(cfg.BindAddr+":"+cfg.Port, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
