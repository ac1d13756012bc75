package rbac_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	_ "github.com/ecclesia-records/ecclesia/testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func withPrincipal(r *http.Request, p rbac.Principal) *http.Request {
	return r.WithContext(rbac.ContextWithPrincipal(r.Context(), p))
}

func TestRequirePermission(t *testing.T) {
	guard := rbac.Guard{Policy: rbac.MustDefault()}
	handler := guard.RequirePermission(rbac.PermDeleteMember)(okHandler())

	t.Run("no principal", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/members/1", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("denied", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := withPrincipal(httptest.NewRequest(http.MethodDelete, "/members/1", nil),
			rbac.Principal{ID: "u1", Role: rbac.RoleReadOnlyViewer, Clearance: rbac.ClearanceParish})
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)

		var problem httpx.ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		assert.Equal(t, "insufficient permissions", problem.Detail)
	})

	t.Run("granted", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := withPrincipal(httptest.NewRequest(http.MethodDelete, "/members/1", nil),
			rbac.Principal{ID: "u2", Role: rbac.RoleBishop, Clearance: rbac.ClearanceDiocese})
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestRequireClearance(t *testing.T) {
	guard := rbac.Guard{Policy: rbac.MustDefault()}
	handler := guard.RequireClearance(rbac.ClearanceDiocese)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil),
		rbac.Principal{Role: rbac.RoleDeaneryAdmin, Clearance: rbac.ClearanceDeanery}))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil),
		rbac.Principal{Role: rbac.RoleECMSuperAdmin, Clearance: rbac.ClearanceECM}))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAuthorize(t *testing.T) {
	guard := rbac.Guard{Policy: rbac.MustDefault()}
	priest := rbac.Principal{ID: "u1", Role: rbac.RoleParishPriest, Clearance: rbac.ClearanceParish, DioceseID: "mangochi", ParishID: "p1"}

	assert.NoError(t, guard.Authorize(priest, rbac.PermCreateSacrament, rbac.Scope{DioceseID: "mangochi", ParishID: "p1"}))

	err := guard.Authorize(priest, rbac.PermCreateSacrament, rbac.Scope{DioceseID: "mangochi", ParishID: "p2"})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	err = guard.Authorize(priest, rbac.PermDeleteSacrament, rbac.Scope{DioceseID: "mangochi", ParishID: "p1"})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = guard.AuthorizeContext(req.Context(), rbac.PermViewMember, rbac.Scope{DioceseID: "mangochi"})
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
}

type countingObserver map[string]int

func (c countingObserver) ObserveDenied(reason string) { c[reason]++ }

func TestGuardReportsDenials(t *testing.T) {
	seen := countingObserver{}
	guard := rbac.Guard{Policy: rbac.MustDefault(), Observer: seen}
	secretary := rbac.Principal{ID: "u1", Role: rbac.RoleParishSecretary, Clearance: rbac.ClearanceParish, DioceseID: "mangochi", ParishID: "p1"}

	require.Error(t, guard.Authorize(secretary, rbac.PermApproveSacrament, rbac.Scope{DioceseID: "mangochi", ParishID: "p1"}))
	require.Error(t, guard.Authorize(secretary, rbac.PermViewMember, rbac.Scope{DioceseID: "zomba"}))
	require.NoError(t, guard.Authorize(secretary, rbac.PermViewMember, rbac.Scope{DioceseID: "mangochi", ParishID: "p1"}))

	rr := httptest.NewRecorder()
	guard.RequirePermission(rbac.PermViewReports, rbac.PermViewAuditLogs)(okHandler()).
		ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), secretary))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	assert.Equal(t, countingObserver{
		"APPROVE_SACRAMENT":            1,
		"scope":                        1,
		"VIEW_REPORTS|VIEW_AUDIT_LOGS": 1,
	}, seen)
}

func TestPermissionsHandler(t *testing.T) {
	policy := rbac.MustDefault()
	r := chi.NewRouter()
	rbac.NewPermissionsHandler(nil, policy).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/policy", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var snap rbac.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, policy.Snapshot(), snap)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/me", nil),
		rbac.Principal{ID: "u9", Role: rbac.RoleReadOnlyViewer, Clearance: rbac.ClearanceParish, DioceseID: "zomba", ParishID: "p4"}))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Label       string            `json:"label"`
		Scope       rbac.Scope        `json:"scope"`
		Permissions []rbac.Permission `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Read-Only Viewer", body.Label)
	assert.Equal(t, "p4", body.Scope.ParishID)
	assert.Len(t, body.Permissions, 3)
}
