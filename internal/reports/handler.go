package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// Handler serves /api/reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Guard
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequirePermission(rbac.PermViewReports)).Get("/sacraments", h.sacraments)
}

func (h *Handler) sacraments(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	year := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "year must be a number")
			return
		}
		year = v
	}
	stats, err := h.service.Sacraments(r.Context(), actor, r.URL.Query().Get("dioceseId"), year)
	if err != nil {
		if !httpx.IsClientError(err) {
			h.logger.Error("sacrament report", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statsResponse{Success: true, Data: stats})
}
