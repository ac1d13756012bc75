package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ecclesia-records/ecclesia/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const dioceseWarmTimeout = 20 * time.Second

// ReportWarmer computes and caches sacrament reports.
type ReportWarmer interface {
	ActiveDioceses(ctx context.Context, year int) ([]string, error)
	Warm(ctx context.Context, dioceseID string, year int) error
}

// ReportsWarmupJob pre-populates report caches for every diocese with records.
type ReportsWarmupJob struct {
	Reports ReportWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reports ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("reports warmup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	started := j.now()
	year := payload.Year
	if year <= 0 {
		year = started.Year()
	}

	tracker := j.metrics().Track(TaskReportsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("year", year))
	logger.Info("starting reports warmup")

	dioceses, err := j.Reports.ActiveDioceses(ctx, year)
	if err != nil {
		logger.Error("load warmup dioceses", slog.Any("error", err))
		return err
	}
	if len(dioceses) == 0 {
		logger.Info("no dioceses discovered for warmup")
		return nil
	}

	// A failing diocese is retried with the whole task but does not stop the
	// others from being warmed on this run.
	var errs []error
	for _, dioceseID := range dioceses {
		if err := j.warmDiocese(ctx, dioceseID, year); err != nil {
			logger.Error("warm diocese", slog.String("diocese_id", dioceseID), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("diocese %s: %w", dioceseID, err))
		}
	}

	logger.Info("completed reports warmup",
		slog.Int("dioceses", len(dioceses)-len(errs)),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", j.now().Sub(started)))
	return errors.Join(errs...)
}

func (j *ReportsWarmupJob) warmDiocese(ctx context.Context, dioceseID string, year int) error {
	scopeCtx, cancel := context.WithTimeout(ctx, dioceseWarmTimeout)
	defer cancel()
	return j.Reports.Warm(scopeCtx, dioceseID, year)
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
