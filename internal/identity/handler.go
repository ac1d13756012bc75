package identity

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// Handler serves claims management and sign-out.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Guard
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers routes under /api/auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequirePermission(rbac.PermManageUsers)).Post("/claims", h.setClaims)
	r.Get("/claims", h.getClaims)
	r.Post("/signout", h.signout)
}

func (h *Handler) setClaims(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req SetClaimsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	claims, err := h.service.SetClaims(r.Context(), actor, req)
	if err != nil {
		h.respondError(w, "set claims", err)
		return
	}
	httpx.JSON(w, http.StatusOK, setClaimsResponse{
		Success: true,
		Message: "Custom claims set successfully",
		Claims:  claims,
	})
}

func (h *Handler) getClaims(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	claims, err := h.service.GetClaims(r.Context(), actor, r.URL.Query().Get("userId"))
	if err != nil {
		h.respondError(w, "get claims", err)
		return
	}
	httpx.JSON(w, http.StatusOK, getClaimsResponse{
		Success: true,
		UserID:  claims.UserID,
		Email:   claims.Email,
		Claims:  claims,
	})
}

func (h *Handler) signout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.service.Signout(r.Context(), id); err != nil {
		h.respondError(w, "signout", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
