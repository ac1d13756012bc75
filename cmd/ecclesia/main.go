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

	"github.com/ecclesia-records/ecclesia/internal/app"
	"github.com/ecclesia-records/ecclesia/internal/audit"
	audithttp "github.com/ecclesia-records/ecclesia/internal/audit/http"
	"github.com/ecclesia-records/ecclesia/internal/certificates"
	"github.com/ecclesia-records/ecclesia/internal/identity"
	"github.com/ecclesia-records/ecclesia/internal/members"
	"github.com/ecclesia-records/ecclesia/internal/observability"
	"github.com/ecclesia-records/ecclesia/internal/platform/cache"
	"github.com/ecclesia-records/ecclesia/internal/platform/db"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/reports"
	"github.com/ecclesia-records/ecclesia/internal/sacraments"
	"github.com/ecclesia-records/ecclesia/jobs"
	"github.com/ecclesia-records/ecclesia/migrations"
	"github.com/ecclesia-records/ecclesia/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	slog.SetDefault(logger)

	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.PGDSN, migrations.FS); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	policy, err := rbac.Default()
	if err != nil {
		logger.Error("load access policy", slog.Any("error", err))
		os.Exit(1)
	}
	metrics := observability.NewMetrics()
	guard := rbac.Guard{Policy: policy, Logger: logger, Observer: metrics}

	revocations := identity.NewRevocationStore(redisClient)
	verifier := identity.NewVerifier(cfg.TokenSecret, cfg.TokenIssuer, policy, revocations)
	identityService := identity.NewService(identity.NewRepository(dbpool), policy, revocations)

	reportsCache := cache.NewVersioned(redisClient, "reports", reports.CacheTTL)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	reportClient := report.NewClient(cfg.GotenbergURL, report.Options{Logger: logger})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               dbpool,
		Guard:              guard,
		Metrics:            metrics,
		Authenticate:       identity.NewMiddleware(verifier, logger).Authenticate,
		IdentityHandler:    identity.NewHandler(logger, identityService, guard),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, policy),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool), guard), guard),
		CertificateHandler: certificates.NewFileHandler(logger, sacraments.NewRepository(dbpool), guard, cfg.CertificateDir),
		ReportHandler:      report.NewHandler(reportClient, logger),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Members: members.Config{
			MaxCandidates: cfg.SearchMaxRecords,
			Metrics:       metrics,
		},
		Sacraments: sacraments.Config{
			Certificates:  jobClient,
			Reports:       reportsCache,
			Metrics:       metrics,
			MaxCandidates: cfg.SearchMaxRecords,
		},
		ReportsCache: reportsCache,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
