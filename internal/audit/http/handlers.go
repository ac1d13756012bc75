package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecclesia-records/ecclesia/internal/audit"
	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, actor rbac.Principal, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, actor rbac.Principal, filters audit.TimelineFilters) ([]audit.Entry, error)
}

// Handler serves /api/audit.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	guard   rbac.Guard
}

// NewHandler creates the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

type timelineResponse struct {
	Success bool          `json:"success"`
	Data    []audit.Entry `json:"data"`
	Count   int           `json:"count"`
	HasMore bool          `json:"hasMore"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), actor, filters)
	if err != nil {
		h.respondError(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{
		Success: true,
		Data:    result.Rows,
		Count:   len(result.Rows),
		HasMore: result.HasMore,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), actor, filters)
	if err != nil {
		h.respondError(w, "export audit timeline", err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.respondError(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	filters := audit.TimelineFilters{
		DioceseID:  strings.TrimSpace(q.Get("dioceseId")),
		Resource:   strings.TrimSpace(q.Get("resource")),
		ResourceID: strings.TrimSpace(q.Get("resourceId")),
		ActorID:    strings.TrimSpace(q.Get("actorId")),
		Action:     strings.TrimSpace(q.Get("action")),
		Limit:      httpx.QueryInt(r, "limit", 0, 1000),
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if from != nil {
		filters.From = *from
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if to != nil {
		filters.To = *to
	}
	return filters, nil
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
