package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// Exports are limited per principal, falling back to the client IP.
const (
	rateLimit  = 10
	rateWindow = time.Minute
)

// MountRoutes registers the audit timeline and its CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	auditors := r.With(h.guard.RequirePermission(rbac.PermViewAuditLogs))
	auditors.Get("/", h.handleTimeline)
	auditors.With(exportLimiter()).Get("/export.csv", h.handleExport)
}

func exportLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(principalOrIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)
}

func principalOrIP(r *http.Request) (string, error) {
	if p, ok := rbac.PrincipalFromContext(r.Context()); ok && p.ID != "" {
		return "principal:" + p.ID, nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
