package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

// PermissionsHandler exposes the policy to UI clients so route guards in the
// browser evaluate the same tables as the API.
type PermissionsHandler struct {
	logger *slog.Logger
	policy *Policy
}

// NewPermissionsHandler builds a PermissionsHandler.
func NewPermissionsHandler(logger *slog.Logger, policy *Policy) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, policy: policy}
}

// MountRoutes registers policy routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/policy", h.policySnapshot)
	r.Get("/me", h.me)
}

type meResponse struct {
	Principal   Principal    `json:"principal"`
	Label       string       `json:"label"`
	Scope       Scope        `json:"scope"`
	Permissions []Permission `json:"permissions"`
}

func (h *PermissionsHandler) policySnapshot(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.policy.Snapshot())
}

func (h *PermissionsHandler) me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	perms := h.policy.PermissionsFor(p.Role)
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, meResponse{
		Principal:   p,
		Label:       h.policy.Label(p.Role),
		Scope:       ScopeOf(p),
		Permissions: perms,
	})
}
