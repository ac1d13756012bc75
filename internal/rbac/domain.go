package rbac

import (
	"fmt"
	"strings"
)

// Role is a named job function. The set of roles is closed.
type Role string

const (
	RoleParishPriest         Role = "PARISH_PRIEST"
	RoleParishSecretary      Role = "PARISH_SECRETARY"
	RoleDeaneryAdmin         Role = "DEANERY_ADMIN"
	RoleDiocesanChancellor   Role = "DIOCESAN_CHANCELLOR"
	RoleDiocesanArchiveAdmin Role = "DIOCESAN_ARCHIVE_ADMIN"
	RoleBishop               Role = "BISHOP"
	RoleDiocesanSuperAdmin   Role = "DIOCESAN_SUPER_ADMIN"
	RoleECMSuperAdmin        Role = "ECM_SUPER_ADMIN"
	RoleReadOnlyViewer       Role = "READ_ONLY_VIEWER"
)

// AllRoles returns every role in declaration order.
func AllRoles() []Role {
	return []Role{
		RoleParishPriest,
		RoleParishSecretary,
		RoleDeaneryAdmin,
		RoleDiocesanChancellor,
		RoleDiocesanArchiveAdmin,
		RoleBishop,
		RoleDiocesanSuperAdmin,
		RoleECMSuperAdmin,
		RoleReadOnlyViewer,
	}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleParishPriest, RoleParishSecretary, RoleDeaneryAdmin,
		RoleDiocesanChancellor, RoleDiocesanArchiveAdmin, RoleBishop,
		RoleDiocesanSuperAdmin, RoleECMSuperAdmin, RoleReadOnlyViewer:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// UnmarshalText rejects values outside the closed role set.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole converts a raw claim into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(raw))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Clearance is an ordered visibility tier.
type Clearance string

const (
	ClearanceParish  Clearance = "parish"
	ClearanceDeanery Clearance = "deanery"
	ClearanceDiocese Clearance = "diocese"
	ClearanceECM     Clearance = "ecm"
)

// Clearances returns the tiers from narrowest to broadest.
func Clearances() []Clearance {
	return []Clearance{ClearanceParish, ClearanceDeanery, ClearanceDiocese, ClearanceECM}
}

// rank returns the position of c in the clearance order.
func (c Clearance) rank() (int, bool) {
	switch c {
	case ClearanceParish:
		return 0, true
	case ClearanceDeanery:
		return 1, true
	case ClearanceDiocese:
		return 2, true
	case ClearanceECM:
		return 3, true
	}
	return -1, false
}

// Valid reports whether c is one of the four tiers.
func (c Clearance) Valid() bool {
	_, ok := c.rank()
	return ok
}

func (c Clearance) String() string { return string(c) }

// UnmarshalText rejects values outside the four tiers.
func (c *Clearance) UnmarshalText(text []byte) error {
	parsed, err := ParseClearance(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseClearance converts a raw claim into a Clearance.
func ParseClearance(raw string) (Clearance, error) {
	c := Clearance(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownClearance, raw)
	}
	return c, nil
}

// Principal describes the authenticated actor. Values are built at the token
// boundary and treated as read-only afterwards.
type Principal struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	Clearance Clearance `json:"clearanceLevel"`
	DioceseID string    `json:"dioceseId,omitempty"`
	ParishID  string    `json:"parishId,omitempty"`
	DeaneryID string    `json:"deaneryId,omitempty"`
}

// Scope identifies where a resource lives. Empty ParishID or DeaneryID means absent.
type Scope struct {
	DioceseID string `json:"dioceseId"`
	ParishID  string `json:"parishId,omitempty"`
	DeaneryID string `json:"deaneryId,omitempty"`
}

// ScopeOf returns the principal's own scope.
func ScopeOf(p Principal) Scope {
	return Scope{DioceseID: p.DioceseID, ParishID: p.ParishID, DeaneryID: p.DeaneryID}
}
