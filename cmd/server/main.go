package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/config"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/logging"
	"github.com/yukikurage/taskboard/internal/server"
	"github.com/yukikurage/taskboard/internal/storage"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.Setup(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer logger.Sync()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.Migrate(database.GetDB()); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}

	store, err := storage.FromConfig(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to open attachment storage", zap.Error(err))
	}

	sessionStore, err := server.NewSessionStore(cfg)
	if err != nil {
		zap.L().Fatal("Failed to create session store", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.NewRouter(cfg, database.GetDB(), store, sessionStore),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Graceful shutdown failed", zap.Error(err))
	}
}
