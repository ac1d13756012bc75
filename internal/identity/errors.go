package identity

import (
	"errors"
	"fmt"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

var (
	// ErrInvalidToken covers every verification failure.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", httpx.ErrUnauthorized)
	// ErrTokenRevoked is returned for tokens revoked by sign-out.
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrInvalidToken)
	// ErrClearanceMismatch is returned when a token's clearance differs from its role's.
	ErrClearanceMismatch = errors.New("clearance does not match role")
	// ErrNotRevocable is returned when signing out a token without a jti.
	ErrNotRevocable = fmt.Errorf("%w: token has no id and cannot be revoked", httpx.ErrValidation)
	// ErrClaimsNotFound is returned when a user has no stored claims.
	ErrClaimsNotFound = fmt.Errorf("%w: claims not found", httpx.ErrNotFound)
)
