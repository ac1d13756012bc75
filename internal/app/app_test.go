package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-records/ecclesia/internal/identity"
	"github.com/ecclesia-records/ecclesia/internal/observability"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	_ "github.com/ecclesia-records/ecclesia/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "ecclesia", cfg.TokenIssuer)
	assert.Equal(t, 500, cfg.SearchMaxRecords)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, "/certificates", cfg.CertificateBaseURL)
	assert.True(t, cfg.DBAutoMigrate)
}

func TestLoadConfigRejectsShortSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_SECRET", "short")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestInTestMode(t *testing.T) {
	require.Equal(t, "1", os.Getenv("ECCLESIA_TEST_MODE"))
	assert.True(t, InTestMode())

	t.Setenv("ECCLESIA_TEST_MODE", "off")
	assert.False(t, InTestMode())
	t.Setenv("ECCLESIA_TEST_MODE", "true")
	assert.True(t, InTestMode())
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))

	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, float64(200), first["status"])
	assert.Equal(t, float64(2), first["bytes"])
	assert.Equal(t, "WARN", second["level"])
	assert.Equal(t, "/missing", second["path"])
}

func TestMiddlewareStackSetsSecurityHeaders(t *testing.T) {
	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	stack := MiddlewareStack(MiddlewareConfig{Config: &Config{AppEnv: "development", RateLimitPerMinute: 1}})
	for i := len(stack) - 1; i >= 0; i-- {
		handler = stack[i](handler)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.1.1.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSecureHeadersRedirectsPlainHTTPInProduction(t *testing.T) {
	called := false
	handler := SecureHeaders(true, slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://records.example.org/healthz", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://records.example.org/healthz", rec.Header().Get("Location"))
	assert.False(t, called)

	req := httptest.NewRequest(http.MethodGet, "http://records.example.org/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.True(t, called)
}

func newTestRouter(t *testing.T) (http.Handler, *identity.Issuer) {
	t.Helper()
	const secret = "router-secret-router-secret-router"
	policy := rbac.MustDefault()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := identity.NewVerifier(secret, "ecclesia", policy, nil)
	router := NewRouter(RouterParams{
		Logger:             logger,
		Config:             &Config{AppEnv: "development", RateLimitPerMinute: 1000},
		Guard:              rbac.Guard{Policy: policy, Logger: logger},
		Metrics:            observability.NewMetrics(),
		Authenticate:       identity.NewMiddleware(verifier, logger).Authenticate,
		PermissionsHandler: rbac.NewPermissionsHandler(logger, policy),
	})
	return router, identity.NewIssuer(secret, "ecclesia", policy)
}

func TestRouterPublicEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ecclesia_http_requests_total")
}

func TestRouterRequiresBearerToken(t *testing.T) {
	router, issuer := newTestRouter(t)

	for _, path := range []string{"/api/access/me", "/api/members", "/api/sacraments/search", "/certificates/BAP-1.pdf"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	secretary := rbac.Principal{ID: "u-sec", Email: "sec@stpeter.example", Role: rbac.RoleParishSecretary, DioceseID: "lilongwe", ParishID: "st-peter"}
	token, err := issuer.Issue(secretary, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/access/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me struct {
		Principal rbac.Principal `json:"principal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, rbac.ClearanceParish, me.Principal.Clearance)

	req = httptest.NewRequest(http.MethodGet, "/api/reports/sacraments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
