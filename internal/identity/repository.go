package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecclesia-records/ecclesia/internal/platform/db"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/shared"
)

// Repository persists user claims.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	UpsertClaims(ctx context.Context, c UserClaims) error
	GetClaims(ctx context.Context, userID string) (UserClaims, error)
	Audit(ctx context.Context, log shared.AuditLog) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs the postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) UpsertClaims(ctx context.Context, c UserClaims) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_claims (user_id, email, role, clearance, diocese_id, parish_id, deanery_id, updated_by, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			email = COALESCE(EXCLUDED.email, user_claims.email),
			role = EXCLUDED.role,
			clearance = EXCLUDED.clearance,
			diocese_id = EXCLUDED.diocese_id,
			parish_id = EXCLUDED.parish_id,
			deanery_id = EXCLUDED.deanery_id,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`,
		c.UserID, c.Email, string(c.Role), string(c.Clearance), c.DioceseID, c.ParishID, c.DeaneryID, c.UpdatedBy, c.UpdatedAt)
	return err
}

func (r *repository) GetClaims(ctx context.Context, userID string) (UserClaims, error) {
	var (
		c         UserClaims
		role      string
		clearance string
	)
	err := r.db.QueryRow(ctx, `
		SELECT user_id, COALESCE(email, ''), role, clearance, COALESCE(diocese_id, ''),
		       COALESCE(parish_id, ''), COALESCE(deanery_id, ''), updated_by, updated_at
		FROM user_claims WHERE user_id = $1`, userID).
		Scan(&c.UserID, &c.Email, &role, &clearance, &c.DioceseID, &c.ParishID, &c.DeaneryID, &c.UpdatedBy, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserClaims{}, ErrClaimsNotFound
		}
		return UserClaims{}, err
	}
	if c.Role, err = rbac.ParseRole(role); err != nil {
		return UserClaims{}, err
	}
	if c.Clearance, err = rbac.ParseClearance(clearance); err != nil {
		return UserClaims{}, err
	}
	return c, nil
}

func (r *repository) Audit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}
