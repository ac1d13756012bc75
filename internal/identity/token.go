package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret  []byte
	issuer  string
	policy  *rbac.Policy
	revoked RevocationChecker
	leeway  time.Duration
}

// NewVerifier builds a Verifier. revoked may be nil.
func NewVerifier(secret, issuer string, policy *rbac.Policy, revoked RevocationChecker) *Verifier {
	return &Verifier{
		secret:  []byte(secret),
		issuer:  issuer,
		policy:  policy,
		revoked: revoked,
		leeway:  30 * time.Second,
	}
}

// Verify parses raw and returns the identity it carries. Role and clearance
// are validated here so downstream code can trust the principal.
func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, rbac.ErrUnknownRole)
	}

	clearance := v.policy.ResolveRoleClearance(claims.Role)
	if claims.Clearance != "" && claims.Clearance != clearance {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, ErrClearanceMismatch)
	}

	if claims.ID != "" && v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, fmt.Errorf("identity: check revocation: %w", err)
		}
		if revoked {
			return Identity{}, ErrTokenRevoked
		}
	}

	id := Identity{Principal: claims.principal(clearance), TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Issuer mints tokens. Production tokens come from the external identity
// provider; this is used by the operator CLI and tests.
type Issuer struct {
	secret []byte
	issuer string
	policy *rbac.Policy
	now    func() time.Time
}

// NewIssuer builds an Issuer.
func NewIssuer(secret, issuer string, policy *rbac.Policy) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, policy: policy, now: time.Now}
}

// Issue signs a token for p valid for ttl. The clearance claim is always
// derived from the role.
func (i *Issuer) Issue(p rbac.Principal, ttl time.Duration) (string, error) {
	if p.ID == "" {
		return "", errors.New("identity: principal id required")
	}
	if !p.Role.Valid() {
		return "", fmt.Errorf("identity: %w", rbac.ErrUnknownRole)
	}
	if ttl <= 0 {
		return "", errors.New("identity: ttl must be positive")
	}
	now := i.now()
	claims := Claims{
		Email:     p.Email,
		Role:      p.Role,
		Clearance: i.policy.ResolveRoleClearance(p.Role),
		DioceseID: p.DioceseID,
		ParishID:  p.ParishID,
		DeaneryID: p.DeaneryID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
