package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasksync/internal/cache"
	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/database"
	"tasksync/internal/repository"
	"tasksync/internal/routes"
	"tasksync/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadEnvFile(".env")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Database not available; exiting", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.MigrateOrCreateSchema(ctx, db); err != nil {
		logger.Error(ctx, "Schema migration failed", "error", err)
		os.Exit(1)
	}

	// Redis is optional; without it every read goes to Postgres.
	var listCache controller.Cache
	if client, err := cache.NewClient(ctx, cfg); err != nil {
		logger.Warn(ctx, "Redis unavailable, serving without cache", "error", err)
	} else {
		defer client.Close()
		listCache = cache.New(client, cfg.CacheTTL)
	}

	gin.SetMode(gin.ReleaseMode)
	handlers := controller.New(repository.New(db), listCache)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.Router(handlers, cfg.JWTSecret),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info(ctx, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server shutdown error", "error", err)
	}
	logger.Info(ctx, "Server stopped")
}
