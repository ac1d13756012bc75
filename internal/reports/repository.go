package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregate queries.
type Repository interface {
	CountByType(ctx context.Context, dioceseID string, year int) (map[string]int, error)
	CountByMonth(ctx context.Context, dioceseID string, year int) (map[time.Month]int, error)
	ActiveDioceses(ctx context.Context, year int) ([]string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func yearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

func (r *repository) CountByType(ctx context.Context, dioceseID string, year int) (map[string]int, error) {
	from, to := yearBounds(year)
	rows, err := r.pool.Query(ctx, `
		SELECT type, COUNT(*) FROM sacraments
		WHERE diocese_id = $1 AND celebrated_on >= $2 AND celebrated_on < $3
		GROUP BY type`, dioceseID, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	var (
		t string
		n int
	)
	_, err = pgx.ForEachRow(rows, []any{&t, &n}, func() error {
		out[t] = n
		return nil
	})
	return out, err
}

func (r *repository) CountByMonth(ctx context.Context, dioceseID string, year int) (map[time.Month]int, error) {
	from, to := yearBounds(year)
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(MONTH FROM celebrated_on AT TIME ZONE 'UTC')::int, COUNT(*) FROM sacraments
		WHERE diocese_id = $1 AND celebrated_on >= $2 AND celebrated_on < $3
		GROUP BY 1`, dioceseID, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Month]int)
	var m, n int
	_, err = pgx.ForEachRow(rows, []any{&m, &n}, func() error {
		out[time.Month(m)] = n
		return nil
	})
	return out, err
}

func (r *repository) ActiveDioceses(ctx context.Context, year int) ([]string, error) {
	from, to := yearBounds(year)
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT diocese_id FROM sacraments
		WHERE celebrated_on >= $1 AND celebrated_on < $2
		ORDER BY diocese_id`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
