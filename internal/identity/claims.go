// Package identity turns bearer tokens into principals and manages the role
// claims assigned to users.
package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	Email     string         `json:"email,omitempty"`
	Role      rbac.Role      `json:"role"`
	Clearance rbac.Clearance `json:"clearanceLevel,omitempty"`
	DioceseID string         `json:"dioceseId,omitempty"`
	ParishID  string         `json:"parishId,omitempty"`
	DeaneryID string         `json:"deaneryId,omitempty"`
	jwt.RegisteredClaims
}

// Identity is a verified token: the principal plus the token metadata needed
// to revoke it.
type Identity struct {
	Principal rbac.Principal
	TokenID   string
	ExpiresAt time.Time
}

// principal builds the principal once role and clearance are validated.
func (c *Claims) principal(clearance rbac.Clearance) rbac.Principal {
	return rbac.Principal{
		ID:        c.Subject,
		Email:     c.Email,
		Role:      c.Role,
		Clearance: clearance,
		DioceseID: c.DioceseID,
		ParishID:  c.ParishID,
		DeaneryID: c.DeaneryID,
	}
}
