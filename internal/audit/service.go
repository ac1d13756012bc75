package audit

import (
	"context"
	"fmt"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

const (
	defaultLimit = 50
	maxLimit     = 200
	// ExportLimit caps the rows written by Export.
	ExportLimit = 5000
)

// Service coordinates audit timeline reads.
type Service struct {
	repo  Repository
	guard rbac.Guard
}

// NewService creates the audit timeline service.
func NewService(repo Repository, guard rbac.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// scope pins non-ecm principals to their own diocese. ecm principals may
// read every diocese or narrow to one.
func (s *Service) scope(actor rbac.Principal, filters TimelineFilters) (TimelineFilters, error) {
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return TimelineFilters{}, fmt.Errorf("%w: from must not be after to", httpx.ErrValidation)
	}
	if actor.Clearance == rbac.ClearanceECM {
		return filters, s.guard.Authorize(actor, rbac.PermViewAuditLogs, rbac.Scope{DioceseID: filters.DioceseID})
	}
	if actor.DioceseID == "" {
		return TimelineFilters{}, fmt.Errorf("%w: principal has no diocese", httpx.ErrForbidden)
	}
	if filters.DioceseID == "" {
		filters.DioceseID = actor.DioceseID
	}
	if err := s.guard.Authorize(actor, rbac.PermViewAuditLogs, rbac.Scope{DioceseID: filters.DioceseID}); err != nil {
		return TimelineFilters{}, err
	}
	return filters, nil
}

// Timeline returns a page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, actor rbac.Principal, filters TimelineFilters) (Result, error) {
	filters, err := s.scope(actor, filters)
	if err != nil {
		return Result{}, err
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	filters.Limit = limit + 1
	rows, err := s.repo.Timeline(ctx, filters)
	if err != nil {
		return Result{}, fmt.Errorf("audit: timeline: %w", err)
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Result{Rows: rows, HasMore: hasMore}, nil
}

// Export returns up to ExportLimit entries for download.
func (s *Service) Export(ctx context.Context, actor rbac.Principal, filters TimelineFilters) ([]Entry, error) {
	filters, err := s.scope(actor, filters)
	if err != nil {
		return nil, err
	}
	filters.Limit = ExportLimit
	rows, err := s.repo.Timeline(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	return rows, nil
}
