package cli

import (
	"fmt"
	"time"

	"github.com/ecclesia-records/ecclesia/internal/identity"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// TokenRequest describes the principal a dev token is minted for.
type TokenRequest struct {
	UserID    string
	Email     string
	Role      string
	DioceseID string
	ParishID  string
	DeaneryID string
	TTL       time.Duration
}

// MintToken signs a bearer token. Clearance always follows the role.
func MintToken(secret, issuer string, policy *rbac.Policy, req TokenRequest) (string, error) {
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	p := rbac.Principal{
		ID:        req.UserID,
		Email:     req.Email,
		Role:      role,
		DioceseID: req.DioceseID,
		ParishID:  req.ParishID,
		DeaneryID: req.DeaneryID,
	}
	return identity.NewIssuer(secret, issuer, policy).Issue(p, req.TTL)
}
