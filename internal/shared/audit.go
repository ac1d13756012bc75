package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// Audit actions.
const (
	ActionCreate              = "create"
	ActionUpdate              = "update"
	ActionDelete              = "delete"
	ActionApprove             = "approve"
	ActionRSVP                = "rsvp"
	ActionSetClaims           = "set_claims"
	ActionSignout             = "signout"
	ActionGenerateCertificate = "generate_certificate"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID    string
	ActorEmail string
	Action     string
	Resource   string
	ResourceID string
	DioceseID  string
	Meta       map[string]any
	At         time.Time
}

// NewAuditLog fills the actor fields from p.
func NewAuditLog(p rbac.Principal, action, resource, resourceID, dioceseID string) AuditLog {
	return AuditLog{
		ActorID:    p.ID,
		ActorEmail: p.Email,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		DioceseID:  dioceseID,
	}
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// WithTx returns a logger that writes through tx.
func (l *AuditLogger) WithTx(tx Execer) *AuditLogger {
	return &AuditLogger{db: tx}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Resource == "" || log.ResourceID == "" {
		return errors.New("audit log requires action/resource/resource_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (actor_id, actor_email, action, resource, resource_id, diocese_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, COALESCE($8, NOW()))`,
		log.ActorID, log.ActorEmail, log.Action, log.Resource, log.ResourceID, log.DioceseID, metaJSON, at)
	return err
}
