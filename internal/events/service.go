package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/platform/sanitize"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/shared"
)

const (
	resourceEvent = "event"
	resourceRSVP  = "event_rsvp"
	defaultLimit  = 100
	maxLimit      = 500
)

// Service implements event operations.
type Service struct {
	repo      Repository
	guard     rbac.Guard
	now       func() time.Time
	newID     func(prefix, scope string, year int) string
	newRSVPID func() string
}

// NewService constructs the service.
func NewService(repo Repository, guard rbac.Guard) *Service {
	return &Service{
		repo:      repo,
		guard:     guard,
		now:       time.Now,
		newID:     shared.NewRecordID,
		newRSVPID: uuid.NewString,
	}
}

func resolveScope(p rbac.Principal, dioceseID, parishID string) (rbac.Scope, error) {
	if dioceseID == "" {
		dioceseID = p.DioceseID
	}
	if dioceseID == "" {
		return rbac.Scope{}, ErrDioceseRequired
	}
	if parishID == "" && p.Clearance == rbac.ClearanceParish {
		parishID = p.ParishID
	}
	return rbac.Scope{DioceseID: dioceseID, ParishID: parishID}, nil
}

func scopeOf(e Event) rbac.Scope {
	return rbac.Scope{DioceseID: e.DioceseID, ParishID: e.ParishID}
}

// List returns events overlapping the filter window, soonest first.
func (s *Service) List(ctx context.Context, actor rbac.Principal, f Filters) ([]Event, error) {
	scope, err := resolveScope(actor, f.DioceseID, f.ParishID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(actor, rbac.PermViewEvent, scope); err != nil {
		return nil, err
	}
	f.DioceseID, f.ParishID = scope.DioceseID, scope.ParishID
	if f.Limit <= 0 || f.Limit > maxLimit {
		f.Limit = defaultLimit
	}
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("events: list: %w", err)
	}
	if out == nil {
		out = []Event{}
	}
	return out, nil
}

// Create schedules an event.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, req CreateRequest) (Event, error) {
	if err := shared.Validate(req); err != nil {
		return Event{}, err
	}
	scope := rbac.Scope{DioceseID: req.DioceseID, ParishID: req.ParishID}
	if err := s.guard.Authorize(actor, rbac.PermCreateEvent, scope); err != nil {
		return Event{}, err
	}
	start, err := httpx.ParseDate("startDate", req.StartDate)
	if err != nil {
		return Event{}, err
	}
	end := start
	if strings.TrimSpace(req.EndDate) != "" {
		if end, err = httpx.ParseDate("endDate", req.EndDate); err != nil {
			return Event{}, err
		}
	}

	now := s.now().UTC()
	e := Event{
		DioceseID:    req.DioceseID,
		ParishID:     req.ParishID,
		Title:        sanitize.Text(req.Title),
		Description:  sanitize.Optional(req.Description),
		Type:         req.Type,
		StartDate:    start.UTC(),
		EndDate:      end.UTC(),
		AllDay:       req.AllDay,
		Location:     sanitize.Text(req.Location),
		RequiresRSVP: req.RequiresRSVP,
		MaxAttendees: req.MaxAttendees,
		Resources:    cleanResources(req.Resources),
		Notes:        sanitize.Optional(req.Notes),
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := checkEvent(e); err != nil {
		return Event{}, err
	}
	scopeKey := e.ParishID
	if scopeKey == "" {
		scopeKey = e.DioceseID
	}
	e.ID = s.newID("EVT", scopeKey, now.Year())

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Insert(ctx, e); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionCreate, resourceEvent, e.ID, e.DioceseID)
		entry.At = now
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return Event{}, fmt.Errorf("events: create: %w", err)
	}
	return e, nil
}

func checkEvent(e Event) error {
	switch {
	case e.Title == "":
		return fmt.Errorf("%w: title is required", httpx.ErrValidation)
	case e.Location == "":
		return fmt.Errorf("%w: location is required", httpx.ErrValidation)
	case e.EndDate.Before(e.StartDate):
		return fmt.Errorf("%w: endDate must not be before startDate", httpx.ErrValidation)
	case e.MaxAttendees != nil && *e.MaxAttendees < e.AttendeeCount:
		return fmt.Errorf("%w: maxAttendees is below the confirmed attendance of %d", httpx.ErrValidation, e.AttendeeCount)
	}
	return nil
}

// cleanResources sanitizes entries and drops blanks. The result is never nil.
func cleanResources(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if v := sanitize.Text(r); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id string) (Event, error) {
	return s.authorized(ctx, actor, rbac.PermViewEvent, id)
}

func (s *Service) authorized(ctx context.Context, actor rbac.Principal, perm rbac.Permission, id string) (Event, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if err := s.guard.Authorize(actor, perm, scopeOf(e)); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, req UpdateRequest) (Event, error) {
	if err := shared.Validate(req); err != nil {
		return Event{}, err
	}
	e, err := s.authorized(ctx, actor, rbac.PermEditEvent, id)
	if err != nil {
		return Event{}, err
	}

	var changes []string
	mark := func(name string) { changes = append(changes, name) }
	if req.Title != nil {
		e.Title = sanitize.Text(*req.Title)
		mark("title")
	}
	if req.Description != nil {
		e.Description = sanitize.Optional(req.Description)
		mark("description")
	}
	if req.Type != nil {
		e.Type = *req.Type
		mark("type")
	}
	if req.StartDate != nil {
		start, err := httpx.ParseDate("startDate", *req.StartDate)
		if err != nil {
			return Event{}, err
		}
		e.StartDate = start.UTC()
		mark("startDate")
	}
	if req.EndDate != nil {
		end, err := httpx.ParseDate("endDate", *req.EndDate)
		if err != nil {
			return Event{}, err
		}
		e.EndDate = end.UTC()
		mark("endDate")
	}
	if req.AllDay != nil {
		e.AllDay = *req.AllDay
		mark("allDay")
	}
	if req.Location != nil {
		e.Location = sanitize.Text(*req.Location)
		mark("location")
	}
	if req.RequiresRSVP != nil {
		e.RequiresRSVP = *req.RequiresRSVP
		mark("requiresRsvp")
	}
	if req.MaxAttendees != nil {
		e.MaxAttendees = req.MaxAttendees
		mark("maxAttendees")
	}
	if req.Resources != nil {
		e.Resources = cleanResources(req.Resources)
		mark("resources")
	}
	if req.Notes != nil {
		e.Notes = sanitize.Optional(req.Notes)
		mark("notes")
	}
	if len(changes) == 0 {
		return Event{}, fmt.Errorf("%w: no fields to update", httpx.ErrValidation)
	}
	if err := checkEvent(e); err != nil {
		return Event{}, err
	}
	e.UpdatedAt = s.now().UTC()

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, e); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionUpdate, resourceEvent, e.ID, e.DioceseID)
		entry.Meta = map[string]any{"changes": changes}
		entry.At = e.UpdatedAt
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return Event{}, fmt.Errorf("events: update: %w", err)
	}
	return e, nil
}

// Delete removes an event together with its RSVPs.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id string) error {
	e, err := s.authorized(ctx, actor, rbac.PermDeleteEvent, id)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Delete(ctx, e.ID); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionDelete, resourceEvent, e.ID, e.DioceseID)
		entry.At = s.now().UTC()
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("events: delete: %w", err)
	}
	return nil
}

// RSVP reserves places for actor. Any authenticated principal may RSVP. A
// non-empty idempotencyKey makes retries of the same request fail with a
// conflict instead of booking twice.
func (s *Service) RSVP(ctx context.Context, actor rbac.Principal, eventID, idempotencyKey string, req RSVPRequest) (RSVP, error) {
	if err := shared.Validate(req); err != nil {
		return RSVP{}, err
	}
	guests := 1
	if req.NumberOfGuests != nil {
		guests = *req.NumberOfGuests
	}
	name := sanitize.Text(req.Name)
	if name == "" {
		return RSVP{}, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	rsvp := RSVP{
		ID:             s.newRSVPID(),
		EventID:        eventID,
		UserID:         actor.ID,
		Name:           name,
		Email:          sanitize.Optional(req.Email),
		Phone:          sanitize.Optional(req.Phone),
		NumberOfGuests: guests,
		Status:         RSVPStatusConfirmed,
		CreatedAt:      s.now().UTC(),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if idempotencyKey != "" {
			if err := repo.ClaimIdempotencyKey(ctx, idempotencyKey, "rsvp:"+actor.ID); err != nil {
				return err
			}
		}
		e, err := repo.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !e.RequiresRSVP {
			return ErrRSVPNotRequired
		}
		if !e.hasRoomFor(guests) {
			return ErrEventFull
		}
		if err := repo.InsertRSVP(ctx, rsvp); err != nil {
			return err
		}
		if err := repo.AddAttendees(ctx, e.ID, guests); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionRSVP, resourceRSVP, rsvp.ID, e.DioceseID)
		entry.Meta = map[string]any{"eventId": e.ID, "guests": guests}
		entry.At = rsvp.CreatedAt
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return RSVP{}, fmt.Errorf("events: rsvp: %w", err)
	}
	return rsvp, nil
}

// RSVPs lists the reservations of an event.
func (s *Service) RSVPs(ctx context.Context, actor rbac.Principal, eventID string) ([]RSVP, error) {
	if _, err := s.authorized(ctx, actor, rbac.PermViewEvent, eventID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListRSVPs(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("events: list rsvps: %w", err)
	}
	if out == nil {
		out = []RSVP{}
	}
	return out, nil
}
