package certificates

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/crypto/blake2b"

	jobmetrics "github.com/ecclesia-records/ecclesia/internal/jobs"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/sacraments"
	"github.com/ecclesia-records/ecclesia/internal/shared"
	"github.com/ecclesia-records/ecclesia/jobs"
)

// Store is the subset of the sacrament repository used by the job.
type Store interface {
	Get(ctx context.Context, id string) (sacraments.Sacrament, error)
	SetCertificate(ctx context.Context, id, url, hash string) error
	Audit(ctx context.Context, log shared.AuditLog) error
}

// PDFRenderer renders a sacrament to PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, s sacraments.Sacrament) ([]byte, error)
}

// JobConfig wires dependencies required by the worker job.
type JobConfig struct {
	Store    Store
	Renderer PDFRenderer
	Dir      string
	BaseURL  string
	Metrics  *jobmetrics.Metrics
	Logger   *slog.Logger
}

// Job processes certificate render requests coming from the queue.
type Job struct {
	store    Store
	renderer PDFRenderer
	dir      string
	baseURL  string
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
}

// NewJob constructs a Job handler.
func NewJob(cfg JobConfig) *Job {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "/certificates"
	}
	return &Job{
		store:    cfg.Store,
		renderer: cfg.Renderer,
		dir:      cfg.Dir,
		baseURL:  baseURL,
		metrics:  cfg.Metrics,
		logger:   logger.With(slog.String("job", jobs.TaskCertificateRender)),
	}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) (resultErr error) {
	if j == nil || j.store == nil || j.renderer == nil {
		return errors.New("certificate job not configured")
	}
	var payload jobs.CertificateRenderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("certificate job: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.SacramentID) == "" || !validFileID(payload.SacramentID) {
		return fmt.Errorf("certificate job: bad sacrament id %q: %w", payload.SacramentID, asynq.SkipRetry)
	}

	tracker := j.metrics.Track(jobs.TaskCertificateRender)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	s, err := j.store.Get(ctx, payload.SacramentID)
	if err != nil {
		if errors.Is(err, sacraments.ErrSacramentNotFound) {
			return fmt.Errorf("certificate job: %w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	pdf, err := j.renderer.Render(ctx, s)
	if err != nil {
		return err
	}
	if _, err := j.save(s.ID, pdf); err != nil {
		return fmt.Errorf("certificate job: save: %w", err)
	}
	hash := Hash(pdf)
	url := j.baseURL + "/" + s.ID + ".pdf"
	if err := j.store.SetCertificate(ctx, s.ID, url, hash); err != nil {
		return fmt.Errorf("certificate job: store: %w", err)
	}

	actor := rbac.Principal{ID: payload.RequestedBy, Email: payload.RequestedByEmail}
	log := shared.NewAuditLog(actor, shared.ActionGenerateCertificate, string(s.Type), s.ID, s.DioceseID)
	log.Meta = map[string]any{"url": url, "hash": hash, "bytes": len(pdf)}
	if err := j.store.Audit(ctx, log); err != nil {
		j.logger.Warn("audit certificate", slog.String("sacrament_id", s.ID), slog.Any("error", err))
	}

	j.metrics.AddCertificate(string(s.Type), s.DioceseID)
	j.logger.Info("certificate ready", slog.String("sacrament_id", s.ID), slog.Int("bytes", len(pdf)))
	return nil
}

// Hash is the hex blake2b-256 digest of a rendered certificate.
func Hash(pdf []byte) string {
	sum := blake2b.Sum256(pdf)
	return hex.EncodeToString(sum[:])
}

func (j *Job) save(id string, pdf []byte) (string, error) {
	dir := storageDir(j.dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, id+".pdf")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, pdf, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}

func storageDir(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return filepath.Join(os.TempDir(), "certificates")
	}
	return dir
}

// validFileID accepts record ids safe to use as file names.
func validFileID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
