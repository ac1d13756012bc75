package events

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// Handler serves /api/events.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Guard
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers event routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermViewEvent))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/rsvps", h.rsvps)
	})
	r.With(h.guard.RequirePermission(rbac.PermCreateEvent)).Post("/", h.create)
	r.With(h.guard.RequirePermission(rbac.PermEditEvent)).Put("/{id}", h.update)
	r.With(h.guard.RequirePermission(rbac.PermDeleteEvent)).Delete("/{id}", h.delete)
	r.With(h.guard.RequirePermission()).Post("/{id}/rsvp", h.rsvp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	f := Filters{
		DioceseID: q.Get("dioceseId"),
		ParishID:  q.Get("parishId"),
		Type:      Type(q.Get("type")),
		Limit:     httpx.QueryInt(r, "limit", defaultLimit, maxLimit),
	}
	var err error
	if f.StartDate, err = httpx.QueryDate(r, "startDate"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if f.EndDate, err = httpx.QueryDate(r, "endDate"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		h.respondError(w, "list events", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: out, Count: len(out)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.respondError(w, "create event", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, eventResponse{Success: true, Data: e, Message: "Event created successfully"})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	e, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get event", err)
		return
	}
	httpx.JSON(w, http.StatusOK, eventResponse{Success: true, Data: e})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, "update event", err)
		return
	}
	httpx.JSON(w, http.StatusOK, eventResponse{Success: true, Data: e, Message: "Event updated successfully"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete event", err)
		return
	}
	httpx.JSON(w, http.StatusOK, eventResponse{Success: true, Message: "Event deleted successfully"})
}

func (h *Handler) rsvp(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var req RSVPRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.RSVP(r.Context(), actor, chi.URLParam(r, "id"), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		h.respondError(w, "rsvp event", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, eventResponse{Success: true, Data: out, Message: "RSVP confirmed"})
}

func (h *Handler) rsvps(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	out, err := h.service.RSVPs(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "list rsvps", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rsvpListResponse{Success: true, Data: out, Count: len(out)})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
