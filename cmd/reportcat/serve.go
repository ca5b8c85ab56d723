package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/reportcat/api/swagger"
	"github.com/noah-isme/reportcat/internal/handler"
	"github.com/noah-isme/reportcat/internal/middleware"
	"github.com/noah-isme/reportcat/internal/repository"
	"github.com/noah-isme/reportcat/internal/service"
	"github.com/noah-isme/reportcat/pkg/config"
	"github.com/noah-isme/reportcat/pkg/jobs"
	"github.com/noah-isme/reportcat/pkg/logger"
	corsmiddleware "github.com/noah-isme/reportcat/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/reportcat/pkg/middleware/requestid"
	"github.com/noah-isme/reportcat/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(cfg *config.Config, logr *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the report API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logr)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	a, err := newApp(cfg, logr, true)
	if err != nil {
		return err
	}
	defer a.Close()

	handlers := handler.Handlers{
		Metrics: handler.NewMetricsHandler(a.metrics, a.db),
	}
	var exports *service.ExportService
	if cfg.Exports.Enabled {
		queue, svc, err := startExports(ctx, a)
		if err != nil {
			return err
		}
		defer queue.Stop()
		exports = svc
		handlers.Exports = handler.NewExportHandler(exports)
	}
	if exports != nil {
		handlers.Reports = handler.NewReportHandler(a.reports, exports)
	} else {
		handlers.Reports = handler.NewReportHandler(a.reports, nil)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.WithResponseMeta())

	handler.Register(r, r.Group(cfg.APIPrefix), handlers)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "driver", cfg.Database.Driver, "reports", a.registry.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logr.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startExports wires the export pipeline: job table, file storage, the
// queue and its worker. The returned queue is already running.
func startExports(ctx context.Context, a *app) (*jobs.Queue, *service.ExportService, error) {
	cfg := a.cfg.Exports
	repo := repository.NewExportJobRepository(a.db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	files, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL)

	exports := service.NewExportService(repo, a.registry, a.reports, files, signer, validator.New(), a.logger, service.ExportConfig{
		APIPrefix:       a.cfg.APIPrefix,
		ResultTTL:       cfg.SignedURLTTL,
		CleanupInterval: cfg.CleanupInterval,
	})
	worker := service.NewExportWorker(repo, exports, a.metrics, cfg.WorkerRetries, a.logger)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     a.logger,
	})
	queue.Start(ctx)
	exports.SetQueue(queue)
	exports.RecoverPendingJobs(ctx)
	exports.StartCleanup(ctx)
	return queue, exports, nil
}
