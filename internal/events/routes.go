package events

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// MountRoutes wires the postgres-backed event handler onto r.
func MountRoutes(r chi.Router, pool *pgxpool.Pool, logger *slog.Logger, guard rbac.Guard) {
	NewHandler(logger, NewService(NewRepository(pool), guard), guard).MountRoutes(r)
}
