package certificates

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/sacraments"
)

// RecordLoader resolves the sacrament a certificate belongs to.
type RecordLoader interface {
	Get(ctx context.Context, id string) (sacraments.Sacrament, error)
}

// FileHandler serves rendered certificates.
type FileHandler struct {
	logger  *slog.Logger
	records RecordLoader
	guard   rbac.Guard
	dir     string
}

// NewFileHandler creates the certificate file handler.
func NewFileHandler(logger *slog.Logger, records RecordLoader, guard rbac.Guard, dir string) *FileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHandler{logger: logger, records: records, guard: guard, dir: storageDir(dir)}
}

// MountRoutes registers GET /{id}.pdf.
func (h *FileHandler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequirePermission(rbac.PermViewSacrament)).Get("/{file}", h.serve)
}

func (h *FileHandler) serve(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".pdf")
	if !ok || !validFileID(id) {
		httpx.RespondError(w, sacraments.ErrSacramentNotFound)
		return
	}
	s, err := h.records.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "load certificate record", err)
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.guard.Authorize(actor, rbac.PermViewSacrament, rbac.Scope{DioceseID: s.DioceseID, ParishID: s.ParishID}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if s.CertificateURL == nil {
		httpx.RespondError(w, ErrNotRendered)
		return
	}
	path := filepath.Join(h.dir, id+".pdf")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			httpx.RespondError(w, ErrNotRendered)
			return
		}
		h.respondError(w, "open certificate", err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.respondError(w, "stat certificate", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+id+`.pdf"`)
	if s.CertificateHash != nil {
		w.Header().Set("ETag", `"`+*s.CertificateHash+`"`)
	}
	http.ServeContent(w, r, id+".pdf", info.ModTime(), f)
}

func (h *FileHandler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
