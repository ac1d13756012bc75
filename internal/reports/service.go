package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// CacheTTL bounds how long a computed report is served from redis.
const CacheTTL = 10 * time.Minute

// Cache stores computed reports. *cache.Versioned implements it.
type Cache interface {
	Key(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}

// Service computes sacrament reports.
type Service struct {
	repo   Repository
	cache  Cache
	guard  rbac.Guard
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the service. A nil cache computes every request.
func NewService(repo Repository, cache Cache, guard rbac.Guard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, guard: guard, logger: logger, now: time.Now}
}

// Sacraments returns the statistics of a diocese for year. Zero values fall
// back to the principal's diocese and the current year.
func (s *Service) Sacraments(ctx context.Context, actor rbac.Principal, dioceseID string, year int) (SacramentStats, error) {
	if dioceseID == "" {
		dioceseID = actor.DioceseID
	}
	if dioceseID == "" {
		return SacramentStats{}, fmt.Errorf("%w: Diocese ID required", httpx.ErrValidation)
	}
	if year == 0 {
		year = s.now().UTC().Year()
	}
	if year < 1800 || year > 9999 {
		return SacramentStats{}, fmt.Errorf("%w: year out of range", httpx.ErrValidation)
	}
	if err := s.guard.Authorize(actor, rbac.PermViewReports, rbac.Scope{DioceseID: dioceseID}); err != nil {
		return SacramentStats{}, err
	}
	return s.cached(ctx, dioceseID, year)
}

func (s *Service) cached(ctx context.Context, dioceseID string, year int) (SacramentStats, error) {
	if s.cache == nil {
		return s.compute(ctx, dioceseID, year)
	}
	// Database failures from the loader are returned as is. Only cache
	// failures fall back to computing without redis.
	var (
		computed *SacramentStats
		loadErr  error
	)
	loader := func(ctx context.Context) (any, error) {
		stats, err := s.compute(ctx, dioceseID, year)
		if err != nil {
			loadErr = err
			return nil, err
		}
		computed = &stats
		return stats, nil
	}
	var out SacramentStats
	key, err := s.cache.Key(ctx, "sacraments", dioceseID, strconv.Itoa(year))
	if err == nil {
		err = s.cache.FetchJSON(ctx, key, &out, loader)
	}
	switch {
	case loadErr != nil:
		return SacramentStats{}, loadErr
	case err == nil:
		return out, nil
	}
	s.logger.Warn("report cache unavailable", slog.String("diocese_id", dioceseID), slog.Any("error", err))
	if computed != nil {
		return *computed, nil
	}
	return s.compute(ctx, dioceseID, year)
}

// compute runs the type and month aggregates concurrently.
func (s *Service) compute(ctx context.Context, dioceseID string, year int) (SacramentStats, error) {
	var (
		byType  map[string]int
		byMonth map[time.Month]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byType, err = s.repo.CountByType(gctx, dioceseID, year)
		return err
	})
	g.Go(func() error {
		var err error
		byMonth, err = s.repo.CountByMonth(gctx, dioceseID, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return SacramentStats{}, fmt.Errorf("reports: sacraments: %w", err)
	}

	out := SacramentStats{DioceseID: dioceseID, Year: year, ByMonth: make(map[string]int, len(byMonth))}
	for t, n := range byType {
		out.add(t, n)
	}
	for m, n := range byMonth {
		if n > 0 {
			out.ByMonth[m.String()[:3]] = n
		}
	}
	return out, nil
}

// ActiveDioceses lists dioceses with sacraments in year.
func (s *Service) ActiveDioceses(ctx context.Context, year int) ([]string, error) {
	return s.repo.ActiveDioceses(ctx, year)
}

// Warm computes and caches the report of a diocese. A report already cached
// under the current version is left in place.
func (s *Service) Warm(ctx context.Context, dioceseID string, year int) error {
	if s.cache == nil {
		return nil
	}
	key, err := s.cache.Key(ctx, "sacraments", dioceseID, strconv.Itoa(year))
	if err != nil {
		return fmt.Errorf("reports: warm: %w", err)
	}
	var out SacramentStats
	return s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.compute(ctx, dioceseID, year)
	})
}
