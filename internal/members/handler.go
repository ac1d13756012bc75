package members

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// Handler serves /api/members.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Guard
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers member routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermViewMember))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.With(h.guard.RequirePermission(rbac.PermCreateMember)).Post("/", h.create)
	r.With(h.guard.RequirePermission(rbac.PermEditMember)).Put("/{id}", h.update)
	r.With(h.guard.RequirePermission(rbac.PermDeleteMember)).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	results, err := h.service.List(r.Context(), actor, ListFilters{
		DioceseID: q.Get("dioceseId"),
		ParishID:  q.Get("parishId"),
		Limit:     httpx.QueryInt(r, "limit", defaultLimit, maxLimit),
		Search:    q.Get("search"),
		Mode:      SearchMode(q.Get("mode")),
	})
	if err != nil {
		h.respondError(w, "list members", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: results, Count: len(results)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var req CreateMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.respondError(w, "create member", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, memberResponse{Success: true, Data: m, Message: "Member created successfully"})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	detail, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"), r.URL.Query().Get("includeFamily") == "true")
	if err != nil {
		h.respondError(w, "get member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, memberResponse{Success: true, Data: detail})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var req UpdateMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, "update member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, memberResponse{Success: true, Data: m, Message: "Member updated successfully"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, memberResponse{Success: true, Message: "Member deleted successfully"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
