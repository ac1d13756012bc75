package members

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/platform/sanitize"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/search"
	"github.com/ecclesia-records/ecclesia/internal/shared"
)

const (
	resourceMember = "member"

	defaultLimit = 100
	maxLimit     = 500
)

// SearchFields are the member fields matched by list searches.
var SearchFields = []string{"firstName", "middleName", "lastName", "fullName", "email", "phone"}

// SearchObserver records result counts of searches.
type SearchObserver interface {
	ObserveSearch(results int)
}

// Config tunes the service.
type Config struct {
	// MaxCandidates caps how many rows are loaded before a search is applied.
	MaxCandidates int
	Metrics       SearchObserver
}

// Service implements member operations.
type Service struct {
	repo  Repository
	guard rbac.Guard
	cfg   Config
	now   func() time.Time
	newID func(parishID string) string
}

// NewService constructs the service.
func NewService(repo Repository, guard rbac.Guard, cfg Config) *Service {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = maxLimit
	}
	return &Service{repo: repo, guard: guard, cfg: cfg, now: time.Now, newID: shared.NewMemberID}
}

// resolveScope applies the principal defaults to the requested diocese and
// parish. Parish-level principals are pinned to their own parish.
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

// List returns members in scope, optionally filtered by a search query.
func (s *Service) List(ctx context.Context, actor rbac.Principal, f ListFilters) ([]Result, error) {
	scope, err := resolveScope(actor, f.DioceseID, f.ParishID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(actor, rbac.PermViewMember, scope); err != nil {
		return nil, err
	}
	f.DioceseID, f.ParishID = scope.DioceseID, scope.ParishID
	if f.Limit <= 0 || f.Limit > maxLimit {
		f.Limit = defaultLimit
	}
	query := strings.TrimSpace(f.Search)

	load := f
	if query != "" {
		load.Limit = s.cfg.MaxCandidates
	}
	members, err := s.repo.ListMembers(ctx, load)
	if err != nil {
		return nil, fmt.Errorf("members: list: %w", err)
	}

	var out []Result
	switch {
	case query == "":
		out = plainResults(members)
	case f.Mode == SearchSimple:
		out = plainResults(search.SimpleSearch(members, query, SearchFields))
	default:
		for _, m := range search.Rank(members, query, SearchFields, search.DefaultThreshold) {
			score := m.Score
			out = append(out, Result{Member: m.Record, Score: &score})
		}
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	if query != "" && s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveSearch(len(out))
	}
	if out == nil {
		out = []Result{}
	}
	return out, nil
}

func plainResults(members []Member) []Result {
	out := make([]Result, 0, len(members))
	for _, m := range members {
		out = append(out, Result{Member: m})
	}
	return out
}

// Create inserts a member and links it to its parents.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, req CreateMemberRequest) (Member, error) {
	if err := shared.Validate(req); err != nil {
		return Member{}, err
	}
	scope := rbac.Scope{DioceseID: req.DioceseID, ParishID: req.ParishID}
	if err := s.guard.Authorize(actor, rbac.PermCreateMember, scope); err != nil {
		return Member{}, err
	}
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		return Member{}, err
	}

	now := s.now().UTC()
	m := Member{
		ID:           s.newID(req.ParishID),
		DioceseID:    req.DioceseID,
		ParishID:     req.ParishID,
		FirstName:    sanitize.Text(req.FirstName),
		MiddleName:   sanitize.Optional(req.MiddleName),
		LastName:     sanitize.Text(req.LastName),
		DateOfBirth:  dob,
		PlaceOfBirth: sanitize.Optional(req.PlaceOfBirth),
		Gender:       Gender(req.Gender),
		Phone:        sanitize.Optional(req.Phone),
		Email:        optional(req.Email),
		Address:      sanitize.Optional(req.Address),
		Baptized:     req.Baptized,
		Confirmed:    req.Confirmed,
		Married:      req.Married,
		FatherID:     optional(req.FatherID),
		MotherID:     optional(req.MotherID),
		SpouseID:     optional(req.SpouseID),
		ChildrenIDs:  []string{},
		Notes:        sanitize.Optional(req.Notes),
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m.FirstName == "" || m.LastName == "" {
		return Member{}, fmt.Errorf("%w: firstName and lastName are required", httpx.ErrValidation)
	}
	for name, id := range map[string]*string{"fatherId": m.FatherID, "motherId": m.MotherID, "spouseId": m.SpouseID} {
		if err := s.checkRelative(ctx, m.DioceseID, name, id); err != nil {
			return Member{}, err
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.InsertMember(ctx, m); err != nil {
			return err
		}
		for _, parent := range []*string{m.FatherID, m.MotherID} {
			if parent == nil {
				continue
			}
			if err := repo.AppendChild(ctx, *parent, m.ID); err != nil {
				return fmt.Errorf("link parent %s: %w", *parent, err)
			}
		}
		entry := shared.NewAuditLog(actor, shared.ActionCreate, resourceMember, m.ID, m.DioceseID)
		entry.At = now
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return Member{}, fmt.Errorf("members: create: %w", err)
	}
	return m, nil
}

// checkRelative ensures a linked member exists in the same diocese.
func (s *Service) checkRelative(ctx context.Context, dioceseID, field string, id *string) error {
	if id == nil {
		return nil
	}
	rel, err := s.repo.GetMember(ctx, *id)
	if errors.Is(err, ErrMemberNotFound) || (err == nil && rel.DioceseID != dioceseID) {
		return fmt.Errorf("%w: %s references an unknown member", httpx.ErrValidation, field)
	}
	return err
}

// Get returns a member, with its family when includeFamily is set.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id string, includeFamily bool) (MemberDetail, error) {
	m, err := s.authorized(ctx, actor, rbac.PermViewMember, id)
	if err != nil {
		return MemberDetail{}, err
	}
	detail := MemberDetail{Member: m}
	if includeFamily {
		family, err := s.loadFamily(ctx, m)
		if err != nil {
			return MemberDetail{}, fmt.Errorf("members: load family: %w", err)
		}
		detail.Family = family
	}
	return detail, nil
}

func (s *Service) authorized(ctx context.Context, actor rbac.Principal, perm rbac.Permission, id string) (Member, error) {
	m, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return Member{}, err
	}
	if err := s.guard.Authorize(actor, perm, rbac.Scope{DioceseID: m.DioceseID, ParishID: m.ParishID}); err != nil {
		return Member{}, err
	}
	return m, nil
}

// loadFamily fetches every linked relative concurrently.
func (s *Service) loadFamily(ctx context.Context, m Member) (*Family, error) {
	ids := m.familyIDs()
	var (
		mu    sync.Mutex
		found = make(map[string]Relative, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			rel, err := s.repo.GetMember(gctx, id)
			if errors.Is(err, ErrMemberNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			found[id] = relativeOf(rel)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pick := func(id *string) *Relative {
		if id == nil {
			return nil
		}
		if rel, ok := found[*id]; ok {
			return &rel
		}
		return nil
	}
	family := &Family{
		Father:   pick(m.FatherID),
		Mother:   pick(m.MotherID),
		Spouse:   pick(m.SpouseID),
		Children: make([]Relative, 0, len(m.ChildrenIDs)),
	}
	for _, id := range m.ChildrenIDs {
		if rel, ok := found[id]; ok {
			family.Children = append(family.Children, rel)
		}
	}
	return family, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, req UpdateMemberRequest) (Member, error) {
	if err := shared.Validate(req); err != nil {
		return Member{}, err
	}
	m, err := s.authorized(ctx, actor, rbac.PermEditMember, id)
	if err != nil {
		return Member{}, err
	}
	changes, err := s.apply(ctx, &m, req)
	if err != nil {
		return Member{}, err
	}
	m.UpdatedAt = s.now().UTC()

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateMember(ctx, m); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionUpdate, resourceMember, m.ID, m.DioceseID)
		entry.Meta = map[string]any{"changes": changes}
		entry.At = m.UpdatedAt
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return Member{}, fmt.Errorf("members: update: %w", err)
	}
	return m, nil
}

// apply copies the set fields of req onto m and lists the changed field names.
func (s *Service) apply(ctx context.Context, m *Member, req UpdateMemberRequest) ([]string, error) {
	var changes []string
	if req.FirstName != nil {
		if m.FirstName = sanitize.Text(*req.FirstName); m.FirstName == "" {
			return nil, fmt.Errorf("%w: firstName cannot be empty", httpx.ErrValidation)
		}
		changes = append(changes, "firstName")
	}
	if req.LastName != nil {
		if m.LastName = sanitize.Text(*req.LastName); m.LastName == "" {
			return nil, fmt.Errorf("%w: lastName cannot be empty", httpx.ErrValidation)
		}
		changes = append(changes, "lastName")
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate(req.DateOfBirth)
		if err != nil {
			return nil, err
		}
		m.DateOfBirth = dob
		changes = append(changes, "dateOfBirth")
	}
	if req.Gender != nil {
		m.Gender = Gender(*req.Gender)
		changes = append(changes, "gender")
	}
	if req.SpouseID != nil {
		spouse := optional(req.SpouseID)
		if spouse != nil && *spouse == m.ID {
			return nil, fmt.Errorf("%w: spouseId cannot reference the member itself", httpx.ErrValidation)
		}
		if err := s.checkRelative(ctx, m.DioceseID, "spouseId", spouse); err != nil {
			return nil, err
		}
		m.SpouseID = spouse
		changes = append(changes, "spouseId")
	}
	for name, field := range map[string]struct {
		src *string
		dst **string
	}{
		"middleName":   {req.MiddleName, &m.MiddleName},
		"placeOfBirth": {req.PlaceOfBirth, &m.PlaceOfBirth},
		"phone":        {req.Phone, &m.Phone},
		"address":      {req.Address, &m.Address},
		"notes":        {req.Notes, &m.Notes},
	} {
		if field.src != nil {
			*field.dst = sanitize.Optional(field.src)
			changes = append(changes, name)
		}
	}
	if req.Email != nil {
		m.Email = optional(req.Email)
		changes = append(changes, "email")
	}
	for name, field := range map[string]struct {
		src *bool
		dst *bool
	}{
		"baptized":  {req.Baptized, &m.Baptized},
		"confirmed": {req.Confirmed, &m.Confirmed},
		"married":   {req.Married, &m.Married},
	} {
		if field.src != nil {
			*field.dst = *field.src
			changes = append(changes, name)
		}
	}
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", httpx.ErrValidation)
	}
	slices.Sort(changes)
	return changes, nil
}

// Delete removes a member.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id string) error {
	m, err := s.authorized(ctx, actor, rbac.PermDeleteMember, id)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteMember(ctx, m.ID); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionDelete, resourceMember, m.ID, m.DioceseID)
		entry.At = s.now().UTC()
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("members: delete: %w", err)
	}
	return nil
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, *raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", httpx.ErrValidation, *raw)
	}
	return &t, nil
}

// optional trims s and maps blank values to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
