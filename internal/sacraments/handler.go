package sacraments

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// Handler serves /api/sacraments.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Guard
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers sacrament routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermViewSacrament))
		r.Get("/search", h.search)
		r.Get("/{type}", h.list)
		r.Get("/record/{id}", h.get)
	})
	r.With(h.guard.RequirePermission(rbac.PermCreateSacrament)).Post("/{type}", h.create)
	r.With(h.guard.RequirePermission(rbac.PermEditSacrament)).Put("/record/{id}", h.update)
	r.With(h.guard.RequirePermission(rbac.PermDeleteSacrament)).Delete("/record/{id}", h.delete)
	r.With(h.guard.RequirePermission(rbac.PermApproveSacrament)).Post("/record/{id}/approve", h.approve)
	r.With(h.guard.RequirePermission(rbac.PermGenerateCertificate)).Post("/record/{id}/certificate", h.certificate)
}

func filtersFromQuery(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	f := Filters{
		DioceseID: q.Get("dioceseId"),
		ParishID:  q.Get("parishId"),
		Name:      q.Get("name"),
		Limit:     httpx.QueryInt(r, "limit", defaultLimit, maxLimit),
		Mode:      SearchMode(q.Get("mode")),
	}
	var err error
	if f.StartDate, err = httpx.QueryDate(r, "startDate"); err != nil {
		return Filters{}, err
	}
	if f.EndDate, err = httpx.QueryDate(r, "endDate"); err != nil {
		return Filters{}, err
	}
	if raw := q.Get("type"); raw != "" {
		if f.Type, err = ParseType(raw); err != nil {
			return Filters{}, err
		}
	}
	return f, nil
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	f, err := filtersFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	results, err := h.service.Search(r.Context(), actor, f)
	if err != nil {
		h.respondError(w, "search sacraments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: results, Count: len(results)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	t, err := ParseType(chi.URLParam(r, "type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, err := filtersFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f.Type = t
	results, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		h.respondError(w, "list sacraments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: results, Count: len(results)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	t, err := ParseType(chi.URLParam(r, "type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Create(r.Context(), actor, t, req)
	if err != nil {
		h.respondError(w, "create sacrament", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recordResponse{
		Success: true,
		Data:    rec,
		Message: capitalize(t) + " record created successfully",
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	rec, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get sacrament", err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordResponse{Success: true, Data: rec})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, "update sacrament", err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordResponse{Success: true, Data: rec, Message: "Record updated successfully"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete sacrament", err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordResponse{Success: true, Message: "Record deleted successfully"})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	rec, err := h.service.Approve(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "approve sacrament", err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordResponse{Success: true, Data: rec, Message: "Record approved"})
}

func (h *Handler) certificate(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	info, err := h.service.RequestCertificate(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "request certificate", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, certificateResponse{
		Success: true,
		TaskID:  info.ID,
		Queue:   info.Queue,
		Message: "Certificate generation queued",
	})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// capitalize turns holy_orders into "Holy orders".
func capitalize(t Type) string {
	title := strings.ToLower(t.Title())
	if title == "" {
		return ""
	}
	return strings.ToUpper(title[:1]) + title[1:]
}
