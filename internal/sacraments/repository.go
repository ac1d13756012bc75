package sacraments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecclesia-records/ecclesia/internal/platform/db"
	"github.com/ecclesia-records/ecclesia/internal/shared"
)

// Repository persists sacraments and the member flags they set.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Insert(ctx context.Context, s Sacrament) error
	Get(ctx context.Context, id string) (Sacrament, error)
	List(ctx context.Context, f Filters) ([]Sacrament, error)
	Update(ctx context.Context, s Sacrament) error
	Delete(ctx context.Context, id string) error
	Approve(ctx context.Context, id, approvedBy string, at time.Time) error
	SetCertificate(ctx context.Context, id, url, hash string) error
	LinkMember(ctx context.Context, memberID, dioceseID string, t Type, sacramentID string) error
	UnlinkMembers(ctx context.Context, t Type, sacramentID string) error
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

const sacramentColumns = `id, type, diocese_id, COALESCE(parish_id, ''), member_id, first_name, last_name,
	celebrated_on, location, officiant_name, registry_number, notes, details, approved, approved_by,
	approved_at, certificate_url, certificate_hash, created_by, created_at, updated_at`

func scanSacrament(row pgx.Row) (Sacrament, error) {
	var s Sacrament
	err := row.Scan(
		&s.ID, &s.Type, &s.DioceseID, &s.ParishID, &s.MemberID, &s.FirstName, &s.LastName,
		&s.Date, &s.Location, &s.OfficiantName, &s.RegistryNumber, &s.Notes, &s.Details, &s.Approved, &s.ApprovedBy,
		&s.ApprovedAt, &s.CertificateURL, &s.CertificateHash, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *repository) Insert(ctx context.Context, s Sacrament) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sacraments (id, type, diocese_id, parish_id, member_id, first_name, last_name,
			celebrated_on, location, officiant_name, registry_number, notes, details, approved, approved_by,
			approved_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		s.ID, s.Type, s.DioceseID, s.ParishID, s.MemberID, s.FirstName, s.LastName,
		s.Date, s.Location, s.OfficiantName, s.RegistryNumber, s.Notes, s.Details, s.Approved, s.ApprovedBy,
		s.ApprovedAt, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *repository) Get(ctx context.Context, id string) (Sacrament, error) {
	s, err := scanSacrament(r.db.QueryRow(ctx, `SELECT `+sacramentColumns+` FROM sacraments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sacrament{}, ErrSacramentNotFound
	}
	return s, err
}

// List applies the type, scope and date filters in SQL, newest first. Name
// matching happens in the service.
func (r *repository) List(ctx context.Context, f Filters) ([]Sacrament, error) {
	var (
		where = []string{"diocese_id = $1"}
		args  = []any{f.DioceseID}
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.ParishID != "" {
		add("parish_id = $%d", f.ParishID)
	}
	if f.StartDate != nil {
		add("celebrated_on >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("celebrated_on <= $%d", *f.EndDate)
	}
	args = append(args, f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM sacraments WHERE %s ORDER BY celebrated_on DESC, id LIMIT $%d`,
		sacramentColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sacrament
	for rows.Next() {
		s, err := scanSacrament(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) Update(ctx context.Context, s Sacrament) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sacraments SET
			first_name = $2, last_name = $3, celebrated_on = $4, location = $5, officiant_name = $6,
			registry_number = $7, notes = $8, details = $9, updated_at = $10
		WHERE id = $1`,
		s.ID, s.FirstName, s.LastName, s.Date, s.Location, s.OfficiantName,
		s.RegistryNumber, s.Notes, s.Details, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSacramentNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sacraments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSacramentNotFound
	}
	return nil
}

func (r *repository) Approve(ctx context.Context, id, approvedBy string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sacraments SET approved = TRUE, approved_by = $2, approved_at = $3, updated_at = $3
		WHERE id = $1 AND NOT approved`, id, approvedBy, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyApproved
	}
	return nil
}

func (r *repository) SetCertificate(ctx context.Context, id, url, hash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sacraments SET certificate_url = $2, certificate_hash = $3, updated_at = NOW()
		WHERE id = $1`, id, url, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSacramentNotFound
	}
	return nil
}

// memberLinkColumns maps a type to the member flag and link column it sets.
var memberLinkColumns = map[Type][2]string{
	TypeBaptism:      {"baptized", "baptism_id"},
	TypeConfirmation: {"confirmed", "confirmation_id"},
	TypeMarriage:     {"married", "marriage_id"},
}

// LinkMember sets the sacrament flag and link on a member of the same
// diocese. Types without a member flag are ignored.
func (r *repository) LinkMember(ctx context.Context, memberID, dioceseID string, t Type, sacramentID string) error {
	cols, ok := memberLinkColumns[t]
	if !ok {
		return nil
	}
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE members SET %s = TRUE, %s = $3, updated_at = NOW()
		WHERE id = $1 AND diocese_id = $2`, cols[0], cols[1]),
		memberID, dioceseID, sacramentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownMember
	}
	return nil
}

// UnlinkMembers clears the flag and link on members pointing at sacramentID.
func (r *repository) UnlinkMembers(ctx context.Context, t Type, sacramentID string) error {
	cols, ok := memberLinkColumns[t]
	if !ok {
		return nil
	}
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE members SET %s = FALSE, %s = NULL, updated_at = NOW()
		WHERE %s = $1`, cols[0], cols[1], cols[1]), sacramentID)
	return err
}

func (r *repository) Audit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}
