package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// TokenVerifier is implemented by *Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (Identity, error)
}

type identityContextKey struct{}

// ContextWithIdentity stores the verified identity and its principal.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityContextKey{}, id)
	return rbac.ContextWithPrincipal(ctx, id.Principal)
}

// IdentityFromContext extracts the verified identity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// Middleware authenticates bearer tokens.
type Middleware struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewMiddleware builds the authentication middleware.
func NewMiddleware(verifier TokenVerifier, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{verifier: verifier, logger: logger}
}

// Authenticate rejects requests without a valid bearer token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized")
			return
		}
		id, err := m.verifier.Verify(r.Context(), raw)
		if err != nil {
			if !errors.Is(err, httpx.ErrUnauthorized) {
				m.logger.Error("verify token", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			m.logger.Debug("token rejected", slog.Any("error", err), slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
