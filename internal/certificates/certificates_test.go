package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/sacraments"
	"github.com/ecclesia-records/ecclesia/internal/shared"
	"github.com/ecclesia-records/ecclesia/jobs"
	_ "github.com/ecclesia-records/ecclesia/testing"
)

type fakePDF struct {
	html string
	err  error
}

func (f *fakePDF) RenderHTML(_ context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7 certificate"), nil
}

type fakeStore struct {
	records map[string]sacraments.Sacrament
	audits  []shared.AuditLog
	getErr  error
}

func (s *fakeStore) Get(_ context.Context, id string) (sacraments.Sacrament, error) {
	if s.getErr != nil {
		return sacraments.Sacrament{}, s.getErr
	}
	rec, ok := s.records[id]
	if !ok {
		return sacraments.Sacrament{}, sacraments.ErrSacramentNotFound
	}
	return rec, nil
}

func (s *fakeStore) SetCertificate(_ context.Context, id, url, hash string) error {
	rec := s.records[id]
	rec.CertificateURL = &url
	rec.CertificateHash = &hash
	s.records[id] = rec
	return nil
}

func (s *fakeStore) Audit(_ context.Context, log shared.AuditLog) error {
	s.audits = append(s.audits, log)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baptism() sacraments.Sacrament {
	registry := "B/2025/114"
	return sacraments.Sacrament{
		ID:             "BAP-STPETER-2025-0001",
		Type:           sacraments.TypeBaptism,
		DioceseID:      "lilongwe",
		ParishID:       "st-peter",
		FirstName:      "Chisomo",
		LastName:       "Banda",
		Date:           time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC),
		Location:       "St Peter's Parish",
		OfficiantName:  "Fr. Mwale",
		RegistryNumber: &registry,
		Details: sacraments.Details{Baptism: &sacraments.BaptismDetails{
			BaptismType: "infant",
			FatherName:  "Peter Banda",
			MotherName:  "Grace <b>Banda</b>",
		}},
	}
}

func newStore(recs ...sacraments.Sacrament) *fakeStore {
	store := &fakeStore{records: map[string]sacraments.Sacrament{}}
	for _, r := range recs {
		store.records[r.ID] = r
	}
	return store
}

// ============================================================================
// RENDERER
// ============================================================================

func TestRendererBuildsCertificateHTML(t *testing.T) {
	pdf := &fakePDF{}
	r, err := NewRenderer(pdf)
	require.NoError(t, err)

	out, err := r.Render(context.Background(), baptism())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 certificate", string(out))

	assert.Contains(t, pdf.html, "CERTIFICATE OF BAPTISM")
	assert.Contains(t, pdf.html, "Chisomo Banda")
	assert.Contains(t, pdf.html, "20 April 2025")
	assert.Contains(t, pdf.html, "B/2025/114")
	assert.Contains(t, pdf.html, "Grace &lt;b&gt;Banda&lt;/b&gt;")
	assert.NotContains(t, pdf.html, "Godfather")
}

func TestNewDocumentMarriageAndHolyOrders(t *testing.T) {
	m := sacraments.Sacrament{ID: "MAR-1", Type: sacraments.TypeMarriage, Details: sacraments.Details{Marriage: &sacraments.MarriageDetails{
		GroomFirstName: "John", GroomLastName: "Phiri", BrideFirstName: "Mary", BrideLastName: "Tembo",
		Witness1Name: "A", Witness2Name: "B",
	}}}
	doc := NewDocument(m, time.Time{})
	assert.Equal(t, "CERTIFICATE OF MARRIAGE", doc.Title)
	assert.Equal(t, "John Phiri & Mary Tembo", doc.Subject)
	assert.Len(t, doc.Lines, 4)

	o := sacraments.Sacrament{ID: "ORD-1", Type: sacraments.TypeHolyOrders, Details: sacraments.Details{HolyOrders: &sacraments.HolyOrdersDetails{
		OrderType: "deacon", Bishop: "Bishop Msusa",
	}}}
	doc = NewDocument(o, time.Time{})
	assert.Equal(t, "CERTIFICATE OF HOLY ORDERS", doc.Title)
	assert.Equal(t, []Line{{Label: "Order", Value: "deacon"}, {Label: "Ordaining bishop", Value: "Bishop Msusa"}}, doc.Lines)
}

func TestNewRendererRequiresClient(t *testing.T) {
	_, err := NewRenderer(nil)
	assert.Error(t, err)
}

// ============================================================================
// JOB
// ============================================================================

func renderTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	task, err := jobs.NewCertificateRenderTask(jobs.CertificateRenderPayload{SacramentID: id, RequestedBy: "u-sec", RequestedByEmail: "sec@stpeter.example"})
	require.NoError(t, err)
	return task
}

func newTestJob(t *testing.T, store *fakeStore, pdf *fakePDF) (*Job, string) {
	t.Helper()
	renderer, err := NewRenderer(pdf)
	require.NoError(t, err)
	dir := t.TempDir()
	return NewJob(JobConfig{Store: store, Renderer: renderer, Dir: dir, Logger: quietLogger()}), dir
}

func TestJobWritesHashesAndAudits(t *testing.T) {
	rec := baptism()
	store := newStore(rec)
	job, dir := newTestJob(t, store, &fakePDF{})

	require.NoError(t, job.Handle(context.Background(), renderTask(t, rec.ID)))

	written, err := os.ReadFile(filepath.Join(dir, rec.ID+".pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 certificate", string(written))

	got := store.records[rec.ID]
	require.NotNil(t, got.CertificateURL)
	assert.Equal(t, "/certificates/"+rec.ID+".pdf", *got.CertificateURL)
	require.NotNil(t, got.CertificateHash)
	assert.Equal(t, Hash(written), *got.CertificateHash)
	assert.Len(t, *got.CertificateHash, 64)

	require.Len(t, store.audits, 1)
	assert.Equal(t, shared.ActionGenerateCertificate, store.audits[0].Action)
	assert.Equal(t, "baptism", store.audits[0].Resource)
	assert.Equal(t, "u-sec", store.audits[0].ActorID)
	assert.Equal(t, "lilongwe", store.audits[0].DioceseID)
}

func TestJobSkipsRetryOnBadInput(t *testing.T) {
	job, _ := newTestJob(t, newStore(), &fakePDF{})
	ctx := context.Background()

	err := job.Handle(ctx, asynq.NewTask(jobs.TaskCertificateRender, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(ctx, renderTask(t, "../etc/passwd"))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(ctx, renderTask(t, "BAP-MISSING"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestJobRetriesRenderFailures(t *testing.T) {
	rec := baptism()
	store := newStore(rec)
	boom := errors.New("gotenberg down")
	job, dir := newTestJob(t, store, &fakePDF{err: boom})

	err := job.Handle(context.Background(), renderTask(t, rec.ID))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Nil(t, store.records[rec.ID].CertificateURL)
	assert.NoFileExists(t, filepath.Join(dir, rec.ID+".pdf"))
}

func TestNilJob(t *testing.T) {
	var job *Job
	payload, _ := json.Marshal(jobs.CertificateRenderPayload{SacramentID: "x"})
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(jobs.TaskCertificateRender, payload)))
}

// ============================================================================
// FILES
// ============================================================================

func newFileRouter(store *fakeStore, dir string, p *rbac.Principal) http.Handler {
	h := NewFileHandler(quietLogger(), store, rbac.Guard{Policy: rbac.MustDefault()}, dir)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if p != nil {
				req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), *p))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/certificates", h.MountRoutes)
	return r
}

func TestFileHandlerServesScopedCertificates(t *testing.T) {
	rec := baptism()
	store := newStore(rec)
	job, dir := newTestJob(t, store, &fakePDF{})
	require.NoError(t, job.Handle(context.Background(), renderTask(t, rec.ID)))

	viewer := rbac.Principal{ID: "u-view", Role: rbac.RoleParishSecretary, Clearance: rbac.ClearanceParish, DioceseID: "lilongwe", ParishID: "st-peter"}
	rec2 := httptest.NewRecorder()
	newFileRouter(store, dir, &viewer).ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/certificates/"+rec.ID+".pdf", nil))
	require.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())
	assert.Equal(t, "application/pdf", rec2.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.7 certificate", rec2.Body.String())

	other := rbac.Principal{ID: "u-other", Role: rbac.RoleParishSecretary, Clearance: rbac.ClearanceParish, DioceseID: "lilongwe", ParishID: "st-paul"}
	rec2 = httptest.NewRecorder()
	newFileRouter(store, dir, &other).ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/certificates/"+rec.ID+".pdf", nil))
	assert.Equal(t, http.StatusForbidden, rec2.Code)

	rec2 = httptest.NewRecorder()
	newFileRouter(store, dir, nil).ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/certificates/"+rec.ID+".pdf", nil))
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
}

func TestFileHandlerNotFound(t *testing.T) {
	rec := baptism()
	store := newStore(rec)
	viewer := rbac.Principal{ID: "u-view", Role: rbac.RoleBishop, Clearance: rbac.ClearanceDiocese, DioceseID: "lilongwe"}
	router := newFileRouter(store, t.TempDir(), &viewer)

	for _, path := range []string{
		"/certificates/" + rec.ID + ".pdf",
		"/certificates/" + rec.ID + ".txt",
		"/certificates/BAP-NONE.pdf",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
