package sacraments

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// MountRoutes wires the postgres-backed sacrament handler onto r.
func MountRoutes(r chi.Router, pool *pgxpool.Pool, logger *slog.Logger, guard rbac.Guard, cfg Config) {
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	svc := NewService(NewRepository(pool), guard, cfg)
	NewHandler(logger, svc, guard).MountRoutes(r)
}
