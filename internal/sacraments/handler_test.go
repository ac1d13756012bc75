package sacraments

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

func newTestRouter(repo *mockRepository, cfg Config, p rbac.Principal) http.Handler {
	guard := rbac.Guard{Policy: rbac.MustDefault()}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), newTestService(repo, cfg), guard)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(rbac.ContextWithPrincipal(req.Context(), p)))
		})
	})
	r.Route("/api/sacraments", h.MountRoutes)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func TestHandler_CreateListAndSearch(t *testing.T) {
	repo := newMockRepository()
	router := newTestRouter(repo, Config{}, secretary())

	body := `{"dioceseId":"lilongwe","parishId":"st-peter","firstName":"Chikondi","lastName":"Banda",
		"date":"2025-04-20","location":"St Peter's","officiantName":"Fr. Phiri","details":{"baptismType":"adult"}}`
	rec := serve(router, http.MethodPost, "/api/sacraments/baptism", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"message":"Baptism record created successfully"`)

	rec = serve(router, http.MethodGet, "/api/sacraments/baptism", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
		Data  []struct {
			ID      string `json:"id"`
			Date    string `json:"date"`
			Details struct {
				Baptism struct {
					BaptismType string `json:"baptismType"`
				} `json:"baptism"`
			} `json:"details"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "adult", list.Data[0].Details.Baptism.BaptismType)
	assert.Equal(t, "2025-04-20T00:00:00Z", list.Data[0].Date)

	rec = serve(router, http.MethodGet, "/api/sacraments/search?name=chikonde&type=baptism", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":0.875`)

	rec = serve(router, http.MethodGet, "/api/sacraments/record/"+list.Data[0].ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_HolyOrdersPath(t *testing.T) {
	repo := newMockRepository()
	router := newTestRouter(repo, Config{}, superAdmin())

	body := `{"dioceseId":"lilongwe","firstName":"Peter","lastName":"Chilima","date":"2025-08-15",
		"location":"Maula Cathedral","details":{"orderType":"deacon","bishop":"Bishop Ziyaye"}}`
	rec := serve(router, http.MethodPost, "/api/sacraments/holy-orders", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"message":"Holy orders record created successfully"`)
	assert.Contains(t, rec.Body.String(), `"approved":true`)
}

func TestHandler_ApproveAndCertificate(t *testing.T) {
	repo := newMockRepository()
	seedRecord(repo, "b1", TypeBaptism, "st-peter", "Chikondi", "Banda", day(3))
	queue := &fakeQueue{}
	router := newTestRouter(repo, Config{Certificates: queue}, superAdmin())

	rec := serve(router, http.MethodPost, "/api/sacraments/record/b1/approve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(router, http.MethodPost, "/api/sacraments/record/b1/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(router, http.MethodPost, "/api/sacraments/record/b1/certificate", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp certificateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "certificates", resp.Queue)
}

func TestHandler_Errors(t *testing.T) {
	repo := newMockRepository()
	seedRecord(repo, "b1", TypeBaptism, "st-peter", "Chikondi", "Banda", day(3))
	secretaryRouter := newTestRouter(repo, Config{}, secretary())
	viewerRouter := newTestRouter(repo, Config{}, rbac.Principal{
		ID: "u-view", Role: rbac.RoleReadOnlyViewer, Clearance: rbac.ClearanceParish, DioceseID: "lilongwe", ParishID: "st-peter",
	})

	tests := []struct {
		name   string
		router http.Handler
		method string
		target string
		body   string
		want   int
	}{
		{"unknown type", secretaryRouter, http.MethodGet, "/api/sacraments/funeral", "", http.StatusBadRequest},
		{"bad date filter", secretaryRouter, http.MethodGet, "/api/sacraments/search?startDate=yesterday", "", http.StatusBadRequest},
		{"missing record", secretaryRouter, http.MethodGet, "/api/sacraments/record/nope", "", http.StatusNotFound},
		{"malformed body", secretaryRouter, http.MethodPost, "/api/sacraments/baptism", "{", http.StatusBadRequest},
		{"approve without permission", secretaryRouter, http.MethodPost, "/api/sacraments/record/b1/approve", "", http.StatusForbidden},
		{"viewer cannot create", viewerRouter, http.MethodPost, "/api/sacraments/baptism", "{}", http.StatusForbidden},
		{"viewer cannot edit", viewerRouter, http.MethodPut, "/api/sacraments/record/b1", `{"notes":"x"}`, http.StatusForbidden},
		{"viewer can read", viewerRouter, http.MethodGet, "/api/sacraments/record/b1", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.router, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
