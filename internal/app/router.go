package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	audithttp "github.com/ecclesia-records/ecclesia/internal/audit/http"
	"github.com/ecclesia-records/ecclesia/internal/certificates"
	"github.com/ecclesia-records/ecclesia/internal/events"
	"github.com/ecclesia-records/ecclesia/internal/identity"
	"github.com/ecclesia-records/ecclesia/internal/members"
	"github.com/ecclesia-records/ecclesia/internal/observability"
	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/reports"
	"github.com/ecclesia-records/ecclesia/internal/sacraments"
	"github.com/ecclesia-records/ecclesia/jobs"
	"github.com/ecclesia-records/ecclesia/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Pool    *pgxpool.Pool
	Guard   rbac.Guard
	Metrics *observability.Metrics

	// Authenticate verifies the bearer token and stores the principal.
	Authenticate func(http.Handler) http.Handler

	IdentityHandler    *identity.Handler
	PermissionsHandler *rbac.PermissionsHandler
	AuditHandler       *audithttp.Handler
	CertificateHandler *certificates.FileHandler
	ReportHandler      *report.Handler
	JobHandler         *jobs.Handler

	Members      members.Config
	Sacraments   sacraments.Config
	ReportsCache reports.Cache
}

// NewRouter constructs the chi.Router with Ecclesia defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if params.Authenticate != nil {
			r.Use(params.Authenticate)
		}
		if params.CertificateHandler != nil {
			r.Route("/certificates", params.CertificateHandler.MountRoutes)
		}
		r.Route("/api", func(r chi.Router) {
			if params.PermissionsHandler != nil {
				r.Route("/access", params.PermissionsHandler.MountRoutes)
			}
			if params.IdentityHandler != nil {
				r.Route("/auth", params.IdentityHandler.MountRoutes)
			}
			r.Route("/members", func(r chi.Router) {
				members.MountRoutes(r, params.Pool, logger, params.Guard, params.Members)
			})
			r.Route("/sacraments", func(r chi.Router) {
				cfg := params.Sacraments
				cfg.Logger = logger
				sacraments.MountRoutes(r, params.Pool, logger, params.Guard, cfg)
			})
			r.Route("/events", func(r chi.Router) {
				events.MountRoutes(r, params.Pool, logger, params.Guard)
			})
			r.Route("/reports", func(r chi.Router) {
				reports.MountRoutes(r, params.Pool, params.ReportsCache, logger, params.Guard)
			})
			if params.AuditHandler != nil {
				r.Route("/audit", params.AuditHandler.MountRoutes)
			}
			if params.JobHandler != nil {
				r.With(params.Guard.RequirePermission(rbac.PermManageDiocese)).Route("/jobs", params.JobHandler.MountRoutes)
			}
			if params.ReportHandler != nil {
				r.With(params.Guard.RequirePermission(rbac.PermManageDiocese)).Route("/renderer", params.ReportHandler.MountRoutes)
			}
		})
	})

	return r
}
