package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecclesia-records/ecclesia/internal/platform/db"
	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/shared"
)

// Repository persists members.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	InsertMember(ctx context.Context, m Member) error
	GetMember(ctx context.Context, id string) (Member, error)
	ListMembers(ctx context.Context, f ListFilters) ([]Member, error)
	UpdateMember(ctx context.Context, m Member) error
	DeleteMember(ctx context.Context, id string) error
	AppendChild(ctx context.Context, parentID, childID string) error
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

const memberColumns = `id, diocese_id, parish_id, first_name, middle_name, last_name, date_of_birth,
	place_of_birth, gender, phone, email, address, baptized, confirmed, married,
	father_id, mother_id, spouse_id, children_ids, baptism_id, confirmation_id, marriage_id,
	notes, created_by, created_at, updated_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(
		&m.ID, &m.DioceseID, &m.ParishID, &m.FirstName, &m.MiddleName, &m.LastName, &m.DateOfBirth,
		&m.PlaceOfBirth, &m.Gender, &m.Phone, &m.Email, &m.Address, &m.Baptized, &m.Confirmed, &m.Married,
		&m.FatherID, &m.MotherID, &m.SpouseID, &m.ChildrenIDs, &m.BaptismID, &m.ConfirmationID, &m.MarriageID,
		&m.Notes, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if m.ChildrenIDs == nil {
		m.ChildrenIDs = []string{}
	}
	return m, err
}

func (r *repository) InsertMember(ctx context.Context, m Member) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		m.ID, m.DioceseID, m.ParishID, m.FirstName, m.MiddleName, m.LastName, m.DateOfBirth,
		m.PlaceOfBirth, m.Gender, m.Phone, m.Email, m.Address, m.Baptized, m.Confirmed, m.Married,
		m.FatherID, m.MotherID, m.SpouseID, m.ChildrenIDs, m.BaptismID, m.ConfirmationID, m.MarriageID,
		m.Notes, m.CreatedBy, m.CreatedAt, m.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("members: insert %s: %w", m.ID, httpx.ErrDuplicate)
	}
	return err
}

func (r *repository) GetMember(ctx context.Context, id string) (Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	}
	return m, err
}

func (r *repository) ListMembers(ctx context.Context, f ListFilters) ([]Member, error) {
	var (
		where = []string{"diocese_id = $1"}
		args  = []any{f.DioceseID}
	)
	if f.ParishID != "" {
		args = append(args, f.ParishID)
		where = append(where, fmt.Sprintf("parish_id = $%d", len(args)))
	}
	args = append(args, f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM members WHERE %s ORDER BY last_name, first_name, id LIMIT $%d`,
		memberColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) UpdateMember(ctx context.Context, m Member) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE members SET
			first_name = $2, middle_name = $3, last_name = $4, date_of_birth = $5, place_of_birth = $6,
			gender = $7, phone = $8, email = $9, address = $10, baptized = $11, confirmed = $12,
			married = $13, spouse_id = $14, notes = $15, updated_at = $16
		WHERE id = $1`,
		m.ID, m.FirstName, m.MiddleName, m.LastName, m.DateOfBirth, m.PlaceOfBirth,
		m.Gender, m.Phone, m.Email, m.Address, m.Baptized, m.Confirmed,
		m.Married, m.SpouseID, m.Notes, m.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// DeleteMember removes the member and clears links other members hold to it.
func (r *repository) DeleteMember(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	_, err = r.db.Exec(ctx, `
		UPDATE members SET
			children_ids = array_remove(children_ids, $1),
			father_id = NULLIF(father_id, $1),
			mother_id = NULLIF(mother_id, $1),
			spouse_id = NULLIF(spouse_id, $1),
			updated_at = NOW()
		WHERE $1 = ANY(children_ids) OR father_id = $1 OR mother_id = $1 OR spouse_id = $1`, id)
	return err
}

// AppendChild adds childID to the parent's children once.
func (r *repository) AppendChild(ctx context.Context, parentID, childID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE members SET children_ids = array_append(children_ids, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(children_ids))`, parentID, childID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE id = $1)`, parentID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrMemberNotFound
		}
	}
	return nil
}

func (r *repository) Audit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}
