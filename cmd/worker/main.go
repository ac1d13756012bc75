package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecclesia-records/ecclesia/internal/app"
	"github.com/ecclesia-records/ecclesia/internal/certificates"
	jobmetrics "github.com/ecclesia-records/ecclesia/internal/jobs"
	"github.com/ecclesia-records/ecclesia/internal/platform/cache"
	"github.com/ecclesia-records/ecclesia/internal/platform/db"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/reports"
	"github.com/ecclesia-records/ecclesia/internal/sacraments"
	"github.com/ecclesia-records/ecclesia/jobs"
	"github.com/ecclesia-records/ecclesia/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	guard := rbac.Guard{Policy: rbac.MustDefault(), Logger: logger}

	reportsCache := cache.NewVersioned(redisClient, "reports", reports.CacheTTL)
	reportsService := reports.NewService(reports.NewRepository(pool), reportsCache, guard, logger)
	warmupJob := jobs.NewReportsWarmupJob(reportsService, logger, metrics)

	pdfClient := report.NewClient(cfg.GotenbergURL, report.Options{Logger: logger})
	renderer, err := certificates.NewRenderer(pdfClient)
	if err != nil {
		logger.Error("init certificate renderer", slog.Any("error", err))
		os.Exit(1)
	}
	certificateJob := certificates.NewJob(certificates.JobConfig{
		Store:    sacraments.NewRepository(pool),
		Renderer: renderer,
		Dir:      cfg.CertificateDir,
		BaseURL:  cfg.CertificateBaseURL,
		Metrics:  metrics,
		Logger:   logger,
	})

	warmupTask, err := jobs.NewReportsWarmupTask(0)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCertificateRender, Handler: certificateJob.Handle},
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{
				asynq.Queue(jobs.QueueMaintenance),
				asynq.MaxRetry(3),
				asynq.Timeout(15 * time.Minute),
			}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics listener", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.String("metrics_addr", cfg.WorkerMetricsAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
