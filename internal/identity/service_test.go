package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-records/ecclesia/internal/identity"
	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/shared"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	claims    map[string]identity.UserClaims
	audits    []shared.AuditLog
	upsertErr error
	auditErr  error
}

func newMockRepository() *mockRepository {
	return &mockRepository{claims: make(map[string]identity.UserClaims)}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, identity.Repository) error) error {
	snapshot := make(map[string]identity.UserClaims, len(m.claims))
	for k, v := range m.claims {
		snapshot[k] = v
	}
	audits := len(m.audits)
	if err := fn(ctx, m); err != nil {
		m.claims = snapshot
		m.audits = m.audits[:audits]
		return err
	}
	return nil
}

func (m *mockRepository) UpsertClaims(_ context.Context, c identity.UserClaims) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.claims[c.UserID] = c
	return nil
}

func (m *mockRepository) GetClaims(_ context.Context, userID string) (identity.UserClaims, error) {
	c, ok := m.claims[userID]
	if !ok {
		return identity.UserClaims{}, identity.ErrClaimsNotFound
	}
	return c, nil
}

func (m *mockRepository) Audit(_ context.Context, log shared.AuditLog) error {
	if m.auditErr != nil {
		return m.auditErr
	}
	m.audits = append(m.audits, log)
	return nil
}

type fakeRevoker struct {
	revoked map[string]time.Time
	err     error
}

func (f *fakeRevoker) Revoke(_ context.Context, jti string, until time.Time) error {
	if f.err != nil {
		return f.err
	}
	if f.revoked == nil {
		f.revoked = make(map[string]time.Time)
	}
	f.revoked[jti] = until
	return nil
}

func ecmAdmin() rbac.Principal {
	return rbac.Principal{ID: "u-ecm", Email: "ecm@example.org", Role: rbac.RoleECMSuperAdmin, Clearance: rbac.ClearanceECM}
}

func bishop() rbac.Principal {
	return rbac.Principal{ID: "u-bishop", Role: rbac.RoleBishop, Clearance: rbac.ClearanceDiocese, DioceseID: "lilongwe"}
}

func newService() (*identity.Service, *mockRepository, *fakeRevoker) {
	repo := newMockRepository()
	rev := &fakeRevoker{}
	return identity.NewService(repo, policy, rev), repo, rev
}

// ============================================================================
// SET CLAIMS
// ============================================================================

func TestSetClaimsStoresAndAudits(t *testing.T) {
	svc, repo, _ := newService()

	got, err := svc.SetClaims(context.Background(), bishop(), identity.SetClaimsRequest{
		UserID:    "u-new",
		Email:     "sec@example.org",
		Role:      "PARISH_SECRETARY",
		DioceseID: "lilongwe",
		ParishID:  "st-peter",
		DeaneryID: "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleParishSecretary, got.Role)
	assert.Equal(t, rbac.ClearanceParish, got.Clearance)
	assert.Empty(t, got.DeaneryID)
	assert.Equal(t, "u-bishop", got.UpdatedBy)
	assert.False(t, got.UpdatedAt.IsZero())

	assert.Equal(t, got, repo.claims["u-new"])
	require.Len(t, repo.audits, 1)
	assert.Equal(t, shared.ActionSetClaims, repo.audits[0].Action)
	assert.Equal(t, "u-new", repo.audits[0].ResourceID)
	assert.Equal(t, "lilongwe", repo.audits[0].DioceseID)
}

func TestSetClaimsECMClearsScope(t *testing.T) {
	svc, _, _ := newService()
	got, err := svc.SetClaims(context.Background(), ecmAdmin(), identity.SetClaimsRequest{
		UserID:    "u-2",
		Role:      "ECM_SUPER_ADMIN",
		DioceseID: "zomba",
		ParishID:  "p",
	})
	require.NoError(t, err)
	assert.Equal(t, rbac.ClearanceECM, got.Clearance)
	assert.Empty(t, got.DioceseID)
	assert.Empty(t, got.ParishID)
}

func TestSetClaimsRejects(t *testing.T) {
	tests := []struct {
		name  string
		actor rbac.Principal
		req   identity.SetClaimsRequest
		want  error
	}{
		{"no permission", priest(), identity.SetClaimsRequest{UserID: "x", Role: "PARISH_SECRETARY"}, httpx.ErrForbidden},
		{"missing user", ecmAdmin(), identity.SetClaimsRequest{Role: "BISHOP", DioceseID: "d"}, httpx.ErrValidation},
		{"unknown role", ecmAdmin(), identity.SetClaimsRequest{UserID: "x", Role: "POPE"}, httpx.ErrValidation},
		{"clearance mismatch", ecmAdmin(), identity.SetClaimsRequest{UserID: "x", Role: "BISHOP", ClearanceLevel: "parish", DioceseID: "d"}, httpx.ErrValidation},
		{"bad clearance", ecmAdmin(), identity.SetClaimsRequest{UserID: "x", Role: "BISHOP", ClearanceLevel: "cosmic", DioceseID: "d"}, httpx.ErrValidation},
		{"parish without parish id", ecmAdmin(), identity.SetClaimsRequest{UserID: "x", Role: "PARISH_PRIEST", DioceseID: "d"}, httpx.ErrValidation},
		{"deanery without deanery id", ecmAdmin(), identity.SetClaimsRequest{UserID: "x", Role: "DEANERY_ADMIN", DioceseID: "d"}, httpx.ErrValidation},
		{"diocese without diocese id", ecmAdmin(), identity.SetClaimsRequest{UserID: "x", Role: "BISHOP"}, httpx.ErrValidation},
		{"above own clearance", bishop(), identity.SetClaimsRequest{UserID: "x", Role: "ECM_SUPER_ADMIN"}, httpx.ErrForbidden},
		{"other diocese", bishop(), identity.SetClaimsRequest{UserID: "x", Role: "BISHOP", DioceseID: "zomba"}, httpx.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newService()
			_, err := svc.SetClaims(context.Background(), tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, repo.claims)
			assert.Empty(t, repo.audits)
		})
	}
}

func TestSetClaimsRollsBackWhenAuditFails(t *testing.T) {
	svc, repo, _ := newService()
	repo.auditErr = errors.New("audit down")
	_, err := svc.SetClaims(context.Background(), ecmAdmin(), identity.SetClaimsRequest{UserID: "x", Role: "BISHOP", DioceseID: "d"})
	assert.ErrorContains(t, err, "audit down")
	assert.Empty(t, repo.claims)
}

// ============================================================================
// GET CLAIMS
// ============================================================================

func TestGetClaims(t *testing.T) {
	svc, repo, _ := newService()
	repo.claims["u-z"] = identity.UserClaims{UserID: "u-z", Role: rbac.RoleBishop, Clearance: rbac.ClearanceDiocese, DioceseID: "zomba"}
	repo.claims["u-l"] = identity.UserClaims{UserID: "u-l", Role: rbac.RoleBishop, Clearance: rbac.ClearanceDiocese, DioceseID: "lilongwe"}
	ctx := context.Background()

	own, err := svc.GetClaims(ctx, priest(), "")
	require.NoError(t, err)
	assert.Equal(t, "u-priest", own.UserID)
	assert.Equal(t, "st-peter", own.ParishID)

	_, err = svc.GetClaims(ctx, priest(), "u-l")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	got, err := svc.GetClaims(ctx, bishop(), "u-l")
	require.NoError(t, err)
	assert.Equal(t, "lilongwe", got.DioceseID)

	_, err = svc.GetClaims(ctx, bishop(), "u-z")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.GetClaims(ctx, ecmAdmin(), "missing")
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

// ============================================================================
// SIGNOUT
// ============================================================================

func TestSignout(t *testing.T) {
	svc, repo, rev := newService()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, svc.Signout(context.Background(), identity.Identity{Principal: priest(), TokenID: "jti-9", ExpiresAt: exp}))
	assert.Equal(t, exp, rev.revoked["jti-9"])
	require.Len(t, repo.audits, 1)
	assert.Equal(t, shared.ActionSignout, repo.audits[0].Action)
	assert.Equal(t, "session", repo.audits[0].Resource)

	err := svc.Signout(context.Background(), identity.Identity{Principal: priest()})
	assert.ErrorIs(t, err, identity.ErrNotRevocable)

	rev.err = errors.New("redis down")
	err = svc.Signout(context.Background(), identity.Identity{Principal: priest(), TokenID: "jti-10", ExpiresAt: exp})
	assert.ErrorContains(t, err, "redis down")
}

// ============================================================================
// HANDLER
// ============================================================================

func newRouter(t *testing.T) (http.Handler, *mockRepository, *fakeRevoker) {
	t.Helper()
	svc, repo, rev := newService()
	guard := rbac.Guard{Policy: policy}
	h := identity.NewHandler(testLogger(), svc, guard)
	verifier := identity.NewVerifier(secret, issuer, policy, nil)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(identity.NewMiddleware(verifier, testLogger()).Authenticate)
		h.MountRoutes(r)
	})
	return r, repo, rev
}

func bearer(t *testing.T, p rbac.Principal) string {
	t.Helper()
	raw, err := identity.NewIssuer(secret, issuer, policy).Issue(p, time.Hour)
	require.NoError(t, err)
	return "Bearer " + raw
}

func TestHandlerSetClaims(t *testing.T) {
	router, repo, _ := newRouter(t)

	body := `{"userId":"u-new","role":"DIOCESAN_ARCHIVE_ADMIN","dioceseId":"lilongwe"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/claims", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, bishop()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"message":"Custom claims set successfully"`)
	assert.Contains(t, rec.Body.String(), `"clearanceLevel":"diocese"`)
	assert.Contains(t, repo.claims, "u-new")

	req = httptest.NewRequest(http.MethodPost, "/api/auth/claims", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, priest()))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/claims", strings.NewReader(`{"userId":`))
	req.Header.Set("Authorization", bearer(t, bishop()))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerGetOwnClaims(t *testing.T) {
	router, _, _ := newRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/claims", nil)
	req.Header.Set("Authorization", bearer(t, priest()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":"u-priest"`)
	assert.Contains(t, rec.Body.String(), `"role":"PARISH_PRIEST"`)
}

func TestHandlerSignout(t *testing.T) {
	router, repo, rev := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil)
	req.Header.Set("Authorization", bearer(t, priest()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Len(t, rev.revoked, 1)
	assert.Len(t, repo.audits, 1)
}
