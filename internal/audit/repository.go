package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository interface {
	Timeline(ctx context.Context, filters TimelineFilters) ([]Entry, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const timelineColumns = `id, actor_id, actor_email, action, resource, resource_id, diocese_id, meta, occurred_at`

func (r *repository) Timeline(ctx context.Context, f TimelineFilters) ([]Entry, error) {
	where, args := timelineWhere(f)
	args = append(args, f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY occurred_at DESC, id DESC LIMIT $%d`,
		timelineColumns, where, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	return pgx.CollectRows(rows, scanEntry)
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Resource, &e.ResourceID,
		&e.DioceseID, &e.Meta, &e.At)
	return e, err
}

// timelineWhere renders the filters that are set. Placeholders are numbered
// from $1 in the order the returned args appear.
func timelineWhere(f TimelineFilters) (string, []any) {
	var conds []string
	var args []any
	add := func(expr string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	for _, eq := range []struct {
		column string
		value  string
	}{
		{"diocese_id", f.DioceseID},
		{"resource", f.Resource},
		{"resource_id", f.ResourceID},
		{"actor_id", f.ActorID},
		{"action", f.Action},
	} {
		if v := strings.TrimSpace(eq.value); v != "" {
			add(eq.column+" = $%d", v)
		}
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at < $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
