package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecclesia-records/ecclesia/internal/platform/db"
	"github.com/ecclesia-records/ecclesia/internal/shared"
)

// Repository persists events and RSVPs.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Insert(ctx context.Context, e Event) error
	Get(ctx context.Context, id string) (Event, error)
	// GetForUpdate locks the event row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, f Filters) ([]Event, error)
	Update(ctx context.Context, e Event) error
	Delete(ctx context.Context, id string) error
	InsertRSVP(ctx context.Context, rsvp RSVP) error
	AddAttendees(ctx context.Context, eventID string, n int) error
	ListRSVPs(ctx context.Context, eventID string) ([]RSVP, error)
	ClaimIdempotencyKey(ctx context.Context, key, scope string) error
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

const eventColumns = `id, diocese_id, COALESCE(parish_id, ''), title, description, type, start_date, end_date,
	all_day, location, requires_rsvp, max_attendees, attendee_count, resources, notes,
	created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.DioceseID, &e.ParishID, &e.Title, &e.Description, &e.Type, &e.StartDate, &e.EndDate,
		&e.AllDay, &e.Location, &e.RequiresRSVP, &e.MaxAttendees, &e.AttendeeCount, &e.Resources, &e.Notes,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrEventNotFound
	}
	return e, err
}

func (r *repository) Insert(ctx context.Context, e Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO events (id, diocese_id, parish_id, title, description, type, start_date, end_date,
			all_day, location, requires_rsvp, max_attendees, attendee_count, resources, notes,
			created_by, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		e.ID, e.DioceseID, e.ParishID, e.Title, e.Description, e.Type, e.StartDate, e.EndDate,
		e.AllDay, e.Location, e.RequiresRSVP, e.MaxAttendees, e.AttendeeCount, e.Resources, e.Notes,
		e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *repository) Get(ctx context.Context, id string) (Event, error) {
	return scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

func (r *repository) GetForUpdate(ctx context.Context, id string) (Event, error) {
	return scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) List(ctx context.Context, f Filters) ([]Event, error) {
	var (
		where = []string{"diocese_id = $1"}
		args  = []any{f.DioceseID}
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ParishID != "" {
		add("parish_id = $%d", f.ParishID)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.StartDate != nil {
		add("end_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("start_date <= $%d", *f.EndDate)
	}
	args = append(args, f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY start_date, id LIMIT $%d`,
		eventColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) Update(ctx context.Context, e Event) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE events SET
			title = $2, description = $3, type = $4, start_date = $5, end_date = $6, all_day = $7,
			location = $8, requires_rsvp = $9, max_attendees = $10, resources = $11, notes = $12,
			updated_at = $13
		WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Type, e.StartDate, e.EndDate, e.AllDay,
		e.Location, e.RequiresRSVP, e.MaxAttendees, e.Resources, e.Notes, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// Delete removes the event and its RSVPs.
func (r *repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM event_rsvps WHERE event_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *repository) InsertRSVP(ctx context.Context, rsvp RSVP) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_rsvps (id, event_id, user_id, name, email, phone, number_of_guests, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rsvp.ID, rsvp.EventID, rsvp.UserID, rsvp.Name, rsvp.Email, rsvp.Phone,
		rsvp.NumberOfGuests, rsvp.Status, rsvp.CreatedAt)
	return err
}

func (r *repository) AddAttendees(ctx context.Context, eventID string, n int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE events SET attendee_count = attendee_count + $2, updated_at = NOW() WHERE id = $1`, eventID, n)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *repository) ListRSVPs(ctx context.Context, eventID string) ([]RSVP, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, event_id, user_id, name, email, phone, number_of_guests, status, created_at
		FROM event_rsvps WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RSVP
	for rows.Next() {
		var v RSVP
		if err := rows.Scan(&v.ID, &v.EventID, &v.UserID, &v.Name, &v.Email, &v.Phone,
			&v.NumberOfGuests, &v.Status, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) ClaimIdempotencyKey(ctx context.Context, key, scope string) error {
	return shared.NewIdempotencyStore(r.db).CheckAndInsert(ctx, key, scope)
}

func (r *repository) Audit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}
