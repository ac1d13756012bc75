package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/internal/shared"
)

// Revoker revokes token ids.
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
}

// Service manages claims assignment and sign-out.
type Service struct {
	repo    Repository
	policy  *rbac.Policy
	revoker Revoker
	now     func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, policy *rbac.Policy, revoker Revoker) *Service {
	return &Service{repo: repo, policy: policy, revoker: revoker, now: time.Now}
}

// SetClaims validates and stores the role assignment in req on behalf of actor.
func (s *Service) SetClaims(ctx context.Context, actor rbac.Principal, req SetClaimsRequest) (UserClaims, error) {
	if !s.policy.HasPermission(actor.Role, rbac.PermManageUsers) {
		return UserClaims{}, fmt.Errorf("%w: insufficient permissions", httpx.ErrForbidden)
	}
	if err := shared.Validate(req); err != nil {
		return UserClaims{}, err
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		return UserClaims{}, fmt.Errorf("%w: invalid role", httpx.ErrValidation)
	}
	clearance := s.policy.ResolveRoleClearance(role)
	if req.ClearanceLevel != "" {
		requested, err := rbac.ParseClearance(req.ClearanceLevel)
		if err != nil {
			return UserClaims{}, fmt.Errorf("%w: invalid clearance level", httpx.ErrValidation)
		}
		if requested != clearance {
			return UserClaims{}, fmt.Errorf("%w: clearanceLevel %s does not match role %s", httpx.ErrValidation, requested, role)
		}
	}

	claims, err := scopeClaims(UserClaims{
		UserID:    req.UserID,
		Email:     req.Email,
		Role:      role,
		Clearance: clearance,
		DioceseID: req.DioceseID,
		ParishID:  req.ParishID,
		DeaneryID: req.DeaneryID,
	})
	if err != nil {
		return UserClaims{}, err
	}

	if actor.Clearance != rbac.ClearanceECM {
		if !rbac.MeetsClearance(actor.Clearance, clearance) {
			return UserClaims{}, fmt.Errorf("%w: cannot assign a role above your own clearance", httpx.ErrForbidden)
		}
		if claims.DioceseID != actor.DioceseID {
			return UserClaims{}, fmt.Errorf("%w: cannot assign roles outside your diocese", httpx.ErrForbidden)
		}
	}

	claims.UpdatedBy = actor.ID
	claims.UpdatedAt = s.now().UTC()

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpsertClaims(ctx, claims); err != nil {
			return err
		}
		entry := shared.NewAuditLog(actor, shared.ActionSetClaims, "user_claims", claims.UserID, claims.DioceseID)
		entry.Meta = map[string]any{
			"role":           claims.Role,
			"clearanceLevel": claims.Clearance,
			"parishId":       claims.ParishID,
			"deaneryId":      claims.DeaneryID,
		}
		return repo.Audit(ctx, entry)
	})
	if err != nil {
		return UserClaims{}, fmt.Errorf("identity: set claims: %w", err)
	}
	return claims, nil
}

// scopeClaims keeps only the scope ids meaningful for the clearance tier and
// checks the required ones are present.
func scopeClaims(c UserClaims) (UserClaims, error) {
	switch c.Clearance {
	case rbac.ClearanceECM:
		c.DioceseID, c.ParishID, c.DeaneryID = "", "", ""
		return c, nil
	case rbac.ClearanceDiocese:
		c.ParishID, c.DeaneryID = "", ""
	case rbac.ClearanceDeanery:
		c.ParishID = ""
		if c.DeaneryID == "" {
			return UserClaims{}, fmt.Errorf("%w: deaneryId is required for deanery roles", httpx.ErrValidation)
		}
	default:
		c.DeaneryID = ""
		if c.ParishID == "" {
			return UserClaims{}, fmt.Errorf("%w: parishId is required for parish roles", httpx.ErrValidation)
		}
	}
	if c.DioceseID == "" {
		return UserClaims{}, fmt.Errorf("%w: dioceseId is required for %s roles", httpx.ErrValidation, c.Clearance)
	}
	return c, nil
}

// GetClaims returns the claims of userID. An empty userID, or the actor's own
// id, returns the actor's token claims without touching storage.
func (s *Service) GetClaims(ctx context.Context, actor rbac.Principal, userID string) (UserClaims, error) {
	if userID == "" || userID == actor.ID {
		return claimsFromPrincipal(actor), nil
	}
	if !s.policy.HasPermission(actor.Role, rbac.PermManageUsers) {
		return UserClaims{}, fmt.Errorf("%w: insufficient permissions", httpx.ErrForbidden)
	}
	claims, err := s.repo.GetClaims(ctx, userID)
	if err != nil {
		return UserClaims{}, err
	}
	if err := rbac.CheckScope(actor, rbac.Scope{DioceseID: claims.DioceseID}); err != nil {
		return UserClaims{}, err
	}
	return claims, nil
}

// Signout revokes the presented token until it expires.
func (s *Service) Signout(ctx context.Context, id Identity) error {
	if id.TokenID == "" {
		return ErrNotRevocable
	}
	if err := s.revoker.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
		return fmt.Errorf("identity: revoke token: %w", err)
	}
	entry := shared.NewAuditLog(id.Principal, shared.ActionSignout, "session", id.TokenID, id.Principal.DioceseID)
	entry.At = s.now().UTC()
	return s.repo.Audit(ctx, entry)
}
