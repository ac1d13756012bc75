package identity

import (
	"time"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// UserClaims is the role assignment stored for a user.
type UserClaims struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email,omitempty"`
	Role      rbac.Role      `json:"role"`
	Clearance rbac.Clearance `json:"clearanceLevel"`
	DioceseID string         `json:"dioceseId,omitempty"`
	ParishID  string         `json:"parishId,omitempty"`
	DeaneryID string         `json:"deaneryId,omitempty"`
	UpdatedBy string         `json:"updatedBy,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt,omitzero"`
}

// Principal converts stored claims into the principal a token would carry.
func (c UserClaims) Principal() rbac.Principal {
	return rbac.Principal{
		ID:        c.UserID,
		Email:     c.Email,
		Role:      c.Role,
		Clearance: c.Clearance,
		DioceseID: c.DioceseID,
		ParishID:  c.ParishID,
		DeaneryID: c.DeaneryID,
	}
}

func claimsFromPrincipal(p rbac.Principal) UserClaims {
	return UserClaims{
		UserID:    p.ID,
		Email:     p.Email,
		Role:      p.Role,
		Clearance: p.Clearance,
		DioceseID: p.DioceseID,
		ParishID:  p.ParishID,
		DeaneryID: p.DeaneryID,
	}
}
