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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/auth"
	"github.com/yourusername/paper-tasks/internal/config"
	"github.com/yourusername/paper-tasks/internal/database"
	"github.com/yourusername/paper-tasks/internal/files"
	"github.com/yourusername/paper-tasks/internal/httpapi"
	"github.com/yourusername/paper-tasks/internal/logging"
	"github.com/yourusername/paper-tasks/internal/pdf"
	"github.com/yourusername/paper-tasks/internal/storage"
	"github.com/yourusername/paper-tasks/internal/tasks"
)

const shutdownTimeout = 30 * time.Second

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := database.Seed(db, logger); err != nil {
		return err
	}

	backend, err := setupStorage(cfg)
	if err != nil {
		return err
	}
	registry := files.NewRegistry(db, backend, logger)

	runtime, err := setupJobs(cfg, logger)
	if err != nil {
		return err
	}
	defer runtime.stop()

	svc := tasks.NewService(tasks.Deps{
		DB:         db,
		Registry:   registry,
		Dispatcher: pdf.NewDispatcher(pdf.NewPDFCPUCodec(), logger),
		Locker:     runtime.locker,
		Scheduler:  runtime.runner,
		Logger:     logger,
		LockTTL:    cfg.TaskLockTTL(),
	})
	runtime.runner.Bind(svc)
	if err := runtime.start(); err != nil {
		return fmt.Errorf("start cleanup workers: %w", err)
	}

	authManager, err := auth.NewManager(db, cfg, logger)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = 32 << 20
	router.Use(logging.Recovery(logger), logging.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	// クライアントがエラーコードを読めるように公開
	corsConfig.ExposeHeaders = []string{httpapi.ErrorHeader, "Content-Disposition", "Retry-After"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpapi.NewHandler(httpapi.Options{
		Tasks:          svc,
		Registry:       registry,
		Auth:           authManager,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}).Register(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("addr", srv.Addr), zap.String("mode", cfg.GinMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	logger.Info("stopped")
	return nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func setupStorage(cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMinIO:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return storage.NewMinIOBackend(ctx, storage.MinIOOptions{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	default:
		return storage.NewLocalBackend(cfg.StorageDir)
	}
}
