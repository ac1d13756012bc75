package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

// DenialObserver counts refusals. reason is the missing permission or "scope".
type DenialObserver interface {
	ObserveDenied(reason string)
}

// Guard wires policy checks into HTTP handlers.
type Guard struct {
	Policy   *Policy
	Logger   *slog.Logger
	Observer DenialObserver
}

func (g Guard) denied(reason string) {
	if g.Observer != nil {
		g.Observer.ObserveDenied(reason)
	}
}

// RequirePermission ensures the current principal holds at least one of perms.
func (g Guard) RequirePermission(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if len(perms) == 0 || g.hasAny(p.Role, perms) {
				next.ServeHTTP(w, r)
				return
			}
			g.denied(permissionReason(perms))
			if g.Logger != nil {
				g.Logger.Warn("rbac permission denied",
					slog.String("principal", p.ID),
					slog.String("role", string(p.Role)),
					slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
		})
	}
}

// RequireClearance ensures the current principal's tier meets required.
func (g Guard) RequireClearance(required Clearance) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !HasClearance(p, required) {
				g.denied("clearance")
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient clearance")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize checks both the permission and the resource scope for p.
func (g Guard) Authorize(p Principal, perm Permission, scope Scope) error {
	if !g.Policy.HasPermission(p.Role, perm) {
		g.denied(string(perm))
		return fmt.Errorf("%w: %s not granted to %s", httpx.ErrForbidden, perm, p.Role)
	}
	if !CanAccessScope(p, scope) {
		g.denied("scope")
		return fmt.Errorf("%w: resource outside principal scope", httpx.ErrForbidden)
	}
	return nil
}

// AuthorizeContext is Authorize for the principal stored in ctx.
func (g Guard) AuthorizeContext(ctx context.Context, perm Permission, scope Scope) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, httpx.ErrUnauthorized
	}
	return p, g.Authorize(p, perm, scope)
}

// CheckScope returns httpx.ErrForbidden when scope lies outside the principal's reach.
func CheckScope(p Principal, scope Scope) error {
	if !CanAccessScope(p, scope) {
		return fmt.Errorf("%w: resource outside principal scope", httpx.ErrForbidden)
	}
	return nil
}

func permissionReason(perms []Permission) string {
	names := make([]string, len(perms))
	for i, perm := range perms {
		names[i] = string(perm)
	}
	return strings.Join(names, "|")
}

func (g Guard) hasAny(role Role, perms []Permission) bool {
	for _, perm := range perms {
		if g.Policy.HasPermission(role, perm) {
			return true
		}
	}
	return false
}
