package members

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// MountRoutes wires the postgres-backed member handler onto r.
func MountRoutes(r chi.Router, pool *pgxpool.Pool, logger *slog.Logger, guard rbac.Guard, cfg Config) {
	svc := NewService(NewRepository(pool), guard, cfg)
	NewHandler(logger, svc, guard).MountRoutes(r)
}
