package sacraments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/platform/sanitize"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/search"
	"github.com/ecclesia-records/ecclesia/internal/shared"
	"github.com/ecclesia-records/ecclesia/jobs"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// SearchFields are the fields matched by the name filter.
var SearchFields = []string{"firstName", "lastName", "fullName", "groomName", "brideName"}

// CertificateQueue enqueues certificate renders. *jobs.Client implements it.
type CertificateQueue interface {
	EnqueueCertificateRender(ctx context.Context, payload jobs.CertificateRenderPayload) (*asynq.TaskInfo, error)
}

// Invalidator drops cached aggregates derived from sacraments.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// SearchObserver records result counts of searches.
type SearchObserver interface {
	ObserveSearch(results int)
}

// Config wires the optional collaborators of the service.
type Config struct {
	Certificates  CertificateQueue
	Reports       Invalidator
	Metrics       SearchObserver
	Logger        *slog.Logger
	MaxCandidates int
}

// Service implements sacrament operations.
type Service struct {
	repo  Repository
	guard rbac.Guard
	cfg   Config
	now   func() time.Time
	newID func(prefix, scope string, year int) string
}

// NewService constructs the service.
func NewService(repo Repository, guard rbac.Guard, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = maxLimit
	}
	return &Service{repo: repo, guard: guard, cfg: cfg, now: time.Now, newID: shared.NewRecordID}
}

// ============================================================================
// CREATE
// ============================================================================

// Create records a sacrament of type t.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, t Type, req CreateRequest) (Sacrament, error) {
	if err := shared.Validate(req); err != nil {
		return Sacrament{}, err
	}
	if t.dioceseScoped() && !rbac.HasClearance(actor, rbac.ClearanceDiocese) {
		return Sacrament{}, fmt.Errorf("%w: %s records require diocese clearance", httpx.ErrForbidden, t)
	}
	scope := rbac.Scope{DioceseID: req.DioceseID, ParishID: req.ParishID}
	if err := s.guard.Authorize(actor, rbac.PermCreateSacrament, scope); err != nil {
		return Sacrament{}, err
	}

	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		return Sacrament{}, err
	}
	details, err := decodeDetails(t, req.Details)
	if err != nil {
		return Sacrament{}, err
	}

	now := s.now().UTC()
	rec := Sacrament{
		Type:           t,
		DioceseID:      req.DioceseID,
		ParishID:       req.ParishID,
		MemberID:       optional(req.MemberID),
		FirstName:      sanitize.Text(req.FirstName),
		LastName:       sanitize.Text(req.LastName),
		Date:           date.UTC(),
		Location:       sanitize.Text(req.Location),
		OfficiantName:  sanitize.Text(req.OfficiantName),
		RegistryNumber: sanitize.Optional(req.RegistryNumber),
		Notes:          sanitize.Optional(req.Notes),
		Details:        details,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyTypeDefaults(&rec, actor, now)
	if err := checkRequired(rec); err != nil {
		return Sacrament{}, err
	}
	scopeKey := rec.ParishID
	if t.dioceseScoped() || scopeKey == "" {
		scopeKey = rec.DioceseID
	}
	rec.ID = s.newID(t.Prefix(), scopeKey, now.Year())

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Insert(ctx, rec); err != nil {
			return err
		}
		for _, memberID := range linkedMembers(rec) {
			if err := repo.LinkMember(ctx, memberID, rec.DioceseID, t, rec.ID); err != nil {
				return err
			}
		}
		entry := shared.NewAuditLog(actor, shared.ActionCreate, string(t), rec.ID, rec.DioceseID)
		entry.At = now
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return Sacrament{}, fmt.Errorf("sacraments: create %s: %w", t, err)
	}
	s.invalidateReports(ctx)
	return rec, nil
}

// applyTypeDefaults fills fields implied by the type.
func applyTypeDefaults(rec *Sacrament, actor rbac.Principal, now time.Time) {
	d := &rec.Details
	switch rec.Type {
	case TypeBaptism:
		if d.Baptism.BaptismType == "" {
			d.Baptism.BaptismType = "infant"
		}
	case TypeConfirmation:
		if rec.OfficiantName == "" {
			rec.OfficiantName = d.Confirmation.Bishop
		}
	case TypeMarriage:
		if rec.FirstName == "" && rec.LastName == "" {
			rec.FirstName, rec.LastName = d.Marriage.GroomFirstName, d.Marriage.GroomLastName
		}
	case TypeHolyOrders:
		if rec.OfficiantName == "" {
			rec.OfficiantName = d.HolyOrders.Bishop
		}
		if d.HolyOrders.Incardination == "" {
			d.HolyOrders.Incardination = rec.DioceseID
		}
		// Ordinations are entered by the diocese and need no further approval.
		rec.Approved = true
		rec.ApprovedBy = &actor.ID
		rec.ApprovedAt = &now
	}
}

// checkRequired enforces the per-type required fields not covered by tags.
func checkRequired(rec Sacrament) error {
	var missing []string
	if rec.ParishID == "" && !rec.Type.dioceseScoped() {
		missing = append(missing, "parishId")
	}
	if rec.FirstName == "" {
		missing = append(missing, "firstName")
	}
	if rec.LastName == "" {
		missing = append(missing, "lastName")
	}
	if rec.Location == "" {
		missing = append(missing, "location")
	}
	if rec.OfficiantName == "" {
		missing = append(missing, "officiantName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", httpx.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// decodeDetails reads the details object of type t and validates it.
func decodeDetails(t Type, raw json.RawMessage) (Details, error) {
	var (
		d      Details
		target any
	)
	switch t {
	case TypeBaptism:
		d.Baptism = &BaptismDetails{}
		target = d.Baptism
	case TypeConfirmation:
		d.Confirmation = &ConfirmationDetails{}
		target = d.Confirmation
	case TypeMarriage:
		d.Marriage = &MarriageDetails{}
		target = d.Marriage
	case TypeHolyOrders:
		d.HolyOrders = &HolyOrdersDetails{}
		target = d.HolyOrders
	case TypeAnointing:
		d.Anointing = &AnointingDetails{}
		target = d.Anointing
	default:
		return Details{}, fmt.Errorf("%w: unknown sacrament type %q", httpx.ErrValidation, t)
	}
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return Details{}, fmt.Errorf("%w: invalid %s details: %v", httpx.ErrValidation, t, err)
		}
	}
	if err := shared.Validate(target); err != nil {
		return Details{}, err
	}
	sanitizeDetails(&d)
	return d, nil
}

func sanitizeDetails(d *Details) {
	clean := func(fields ...*string) {
		for _, f := range fields {
			*f = sanitize.Text(*f)
		}
	}
	switch {
	case d.Baptism != nil:
		b := d.Baptism
		clean(&b.FatherName, &b.MotherName, &b.GodfatherName, &b.GodfatherParish, &b.GodmotherName, &b.GodmotherParish)
	case d.Confirmation != nil:
		c := d.Confirmation
		clean(&c.ConfirmationName, &c.SponsorName, &c.SponsorParish, &c.Bishop)
	case d.Marriage != nil:
		m := d.Marriage
		clean(&m.GroomFirstName, &m.GroomLastName, &m.BrideFirstName, &m.BrideLastName,
			&m.Witness1Name, &m.Witness2Name, &m.CivilRegistrationNumber)
		m.GroomMemberID = optional(m.GroomMemberID)
		m.BrideMemberID = optional(m.BrideMemberID)
	case d.HolyOrders != nil:
		h := d.HolyOrders
		clean(&h.Bishop, &h.Incardination)
	case d.Anointing != nil:
		a := d.Anointing
		clean(&a.Reason, &a.Condition)
	}
}

// linkedMembers lists the members whose flags the record sets, without
// duplicates.
func linkedMembers(rec Sacrament) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, id := range []*string{rec.MemberID, marriageMember(rec, true), marriageMember(rec, false)} {
		if id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	return ids
}

func marriageMember(rec Sacrament, groom bool) *string {
	if rec.Details.Marriage == nil {
		return nil
	}
	if groom {
		return rec.Details.Marriage.GroomMemberID
	}
	return rec.Details.Marriage.BrideMemberID
}

// ============================================================================
// READ
// ============================================================================

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

// List returns records of a single type within scope, newest first.
func (s *Service) List(ctx context.Context, actor rbac.Principal, f Filters) ([]Result, error) {
	if f.Type == "" {
		return nil, fmt.Errorf("%w: type is required", httpx.ErrValidation)
	}
	f.Name = ""
	return s.Search(ctx, actor, f)
}

// Search pre-filters by type, scope and date range in SQL, then matches the
// name against the loaded candidates.
func (s *Service) Search(ctx context.Context, actor rbac.Principal, f Filters) ([]Result, error) {
	scope, err := resolveScope(actor, f.DioceseID, f.ParishID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(actor, rbac.PermViewSacrament, scope); err != nil {
		return nil, err
	}
	f.DioceseID, f.ParishID = scope.DioceseID, scope.ParishID
	if f.Limit <= 0 || f.Limit > maxLimit {
		f.Limit = defaultLimit
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, fmt.Errorf("%w: endDate must not be before startDate", httpx.ErrValidation)
	}
	name := strings.TrimSpace(f.Name)

	load := f
	if name != "" {
		load.Limit = s.cfg.MaxCandidates
	}
	records, err := s.repo.List(ctx, load)
	if err != nil {
		return nil, fmt.Errorf("sacraments: search: %w", err)
	}

	out := []Result{}
	switch {
	case name == "":
		for _, rec := range records {
			out = append(out, Result{Sacrament: rec})
		}
	case f.Mode == SearchSimple:
		for _, rec := range search.SimpleSearch(records, name, SearchFields) {
			out = append(out, Result{Sacrament: rec})
		}
	default:
		for _, m := range search.Rank(records, name, SearchFields, search.DefaultThreshold) {
			score := m.Score
			out = append(out, Result{Sacrament: m.Record, Score: &score})
		}
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	if name != "" && s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveSearch(len(out))
	}
	return out, nil
}

// Get returns a single record.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id string) (Sacrament, error) {
	return s.authorized(ctx, actor, rbac.PermViewSacrament, id)
}

func (s *Service) authorized(ctx context.Context, actor rbac.Principal, perm rbac.Permission, id string) (Sacrament, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Sacrament{}, err
	}
	if err := s.guard.Authorize(actor, perm, rbac.Scope{DioceseID: rec.DioceseID, ParishID: rec.ParishID}); err != nil {
		return Sacrament{}, err
	}
	return rec, nil
}

// ============================================================================
// MUTATIONS
// ============================================================================

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, req UpdateRequest) (Sacrament, error) {
	if err := shared.Validate(req); err != nil {
		return Sacrament{}, err
	}
	rec, err := s.authorized(ctx, actor, rbac.PermEditSacrament, id)
	if err != nil {
		return Sacrament{}, err
	}

	var changes []string
	set := func(name string, src *string, dst *string) {
		if src != nil {
			*dst = sanitize.Text(*src)
			changes = append(changes, name)
		}
	}
	set("firstName", req.FirstName, &rec.FirstName)
	set("lastName", req.LastName, &rec.LastName)
	set("location", req.Location, &rec.Location)
	set("officiantName", req.OfficiantName, &rec.OfficiantName)
	if req.Date != nil {
		date, err := httpx.ParseDate("date", *req.Date)
		if err != nil {
			return Sacrament{}, err
		}
		rec.Date = date.UTC()
		changes = append(changes, "date")
	}
	if req.RegistryNumber != nil {
		rec.RegistryNumber = sanitize.Optional(req.RegistryNumber)
		changes = append(changes, "registryNumber")
	}
	if req.Notes != nil {
		rec.Notes = sanitize.Optional(req.Notes)
		changes = append(changes, "notes")
	}
	if len(req.Details) > 0 {
		details, err := decodeDetails(rec.Type, req.Details)
		if err != nil {
			return Sacrament{}, err
		}
		rec.Details = details
		changes = append(changes, "details")
	}
	if len(changes) == 0 {
		return Sacrament{}, fmt.Errorf("%w: no fields to update", httpx.ErrValidation)
	}
	if err := checkRequired(rec); err != nil {
		return Sacrament{}, err
	}
	rec.UpdatedAt = s.now().UTC()

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, rec); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionUpdate, string(rec.Type), rec.ID, rec.DioceseID)
		entry.Meta = map[string]any{"changes": changes}
		entry.At = rec.UpdatedAt
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return Sacrament{}, fmt.Errorf("sacraments: update: %w", err)
	}
	s.invalidateReports(ctx)
	return rec, nil
}

// Delete removes a record and clears the member flags it set.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id string) error {
	rec, err := s.authorized(ctx, actor, rbac.PermDeleteSacrament, id)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UnlinkMembers(ctx, rec.Type, rec.ID); err != nil {
			return err
		}
		if err := repo.Delete(ctx, rec.ID); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionDelete, string(rec.Type), rec.ID, rec.DioceseID)
		entry.At = s.now().UTC()
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("sacraments: delete: %w", err)
	}
	s.invalidateReports(ctx)
	return nil
}

// Approve marks a record approved by actor.
func (s *Service) Approve(ctx context.Context, actor rbac.Principal, id string) (Sacrament, error) {
	rec, err := s.authorized(ctx, actor, rbac.PermApproveSacrament, id)
	if err != nil {
		return Sacrament{}, err
	}
	if rec.Approved {
		return Sacrament{}, ErrAlreadyApproved
	}
	now := s.now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Approve(ctx, rec.ID, actor.ID, now); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionApprove, string(rec.Type), rec.ID, rec.DioceseID)
		entry.At = now
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return Sacrament{}, fmt.Errorf("sacraments: approve: %w", err)
	}
	rec.Approved = true
	rec.ApprovedBy = &actor.ID
	rec.ApprovedAt = &now
	rec.UpdatedAt = now
	return rec, nil
}

// RequestCertificate queues a PDF render of the record.
func (s *Service) RequestCertificate(ctx context.Context, actor rbac.Principal, id string) (*asynq.TaskInfo, error) {
	rec, err := s.authorized(ctx, actor, rbac.PermGenerateCertificate, id)
	if err != nil {
		return nil, err
	}
	if s.cfg.Certificates == nil {
		return nil, fmt.Errorf("sacraments: certificate queue not configured")
	}
	info, err := s.cfg.Certificates.EnqueueCertificateRender(ctx, jobs.CertificateRenderPayload{
		SacramentID:      rec.ID,
		RequestedBy:      actor.ID,
		RequestedByEmail: actor.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("sacraments: enqueue certificate: %w", err)
	}
	return info, nil
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.cfg.Reports == nil {
		return
	}
	if err := s.cfg.Reports.Bump(ctx); err != nil {
		s.cfg.Logger.Warn("invalidate report cache", slog.Any("error", err))
	}
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
