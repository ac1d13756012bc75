package rbac

import (
	"fmt"
	"slices"
)

// RoleDefinition describes a role's label and clearance tier.
type RoleDefinition struct {
	Label     string
	Clearance Clearance
}

// Tables is the raw input to NewPolicy.
type Tables struct {
	Roles       map[Role]RoleDefinition
	Permissions map[Permission][]Role
}

// DefaultTables returns the built-in role and permission tables. Each call
// returns fresh maps.
func DefaultTables() Tables {
	everyone := AllRoles()
	return Tables{
		Roles: map[Role]RoleDefinition{
			RoleParishPriest:         {Label: "Parish Priest", Clearance: ClearanceParish},
			RoleParishSecretary:      {Label: "Parish Secretary", Clearance: ClearanceParish},
			RoleDeaneryAdmin:         {Label: "Deanery Administrator", Clearance: ClearanceDeanery},
			RoleDiocesanChancellor:   {Label: "Diocesan Chancellor", Clearance: ClearanceDiocese},
			RoleDiocesanArchiveAdmin: {Label: "Diocesan Archive Admin", Clearance: ClearanceDiocese},
			RoleBishop:               {Label: "Bishop", Clearance: ClearanceDiocese},
			RoleDiocesanSuperAdmin:   {Label: "Diocesan Super Admin", Clearance: ClearanceDiocese},
			RoleECMSuperAdmin:        {Label: "ECM Super Admin", Clearance: ClearanceECM},
			RoleReadOnlyViewer:       {Label: "Read-Only Viewer", Clearance: ClearanceParish},
		},
		Permissions: map[Permission][]Role{
			PermCreateSacrament:     {RoleParishPriest, RoleParishSecretary, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermEditSacrament:       {RoleParishPriest, RoleParishSecretary, RoleDiocesanChancellor, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermDeleteSacrament:     {RoleBishop, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermApproveSacrament:    {RoleDiocesanChancellor, RoleBishop, RoleDiocesanSuperAdmin},
			PermViewSacrament:       everyone,
			PermGenerateCertificate: {RoleParishPriest, RoleParishSecretary, RoleDiocesanChancellor, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},

			PermCreateMember: {RoleParishPriest, RoleParishSecretary, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermEditMember:   {RoleParishPriest, RoleParishSecretary, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermDeleteMember: {RoleBishop, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermViewMember:   everyone,

			PermCreateEvent: {RoleParishPriest, RoleParishSecretary, RoleDeaneryAdmin, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermEditEvent:   {RoleParishPriest, RoleParishSecretary, RoleDeaneryAdmin, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermDeleteEvent: {RoleParishPriest, RoleDeaneryAdmin, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermViewEvent:   everyone,

			PermManageUsers:   {RoleBishop, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermManageDiocese: {RoleBishop, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermViewAuditLogs: {RoleDiocesanChancellor, RoleBishop, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
			PermViewReports:   {RoleDeaneryAdmin, RoleDiocesanChancellor, RoleBishop, RoleDiocesanSuperAdmin, RoleECMSuperAdmin},
		},
	}
}

// Policy is the immutable role and permission configuration. A single value is
// built at startup and shared by every guard, handler and exported snapshot.
type Policy struct {
	roles       map[Role]RoleDefinition
	grants      map[Permission]map[Role]struct{}
	permissions []Permission
}

// NewPolicy validates the tables and copies them into a Policy. Every role in
// the closed set must have a definition with a valid clearance.
func NewPolicy(t Tables) (*Policy, error) {
	p := &Policy{
		roles:  make(map[Role]RoleDefinition, len(t.Roles)),
		grants: make(map[Permission]map[Role]struct{}, len(t.Permissions)),
	}
	for _, role := range AllRoles() {
		def, ok := t.Roles[role]
		if !ok {
			return nil, fmt.Errorf("%w: role %s has no clearance", ErrInvalidPolicy, role)
		}
		if !def.Clearance.Valid() {
			return nil, fmt.Errorf("%w: role %s has clearance %q", ErrInvalidPolicy, role, def.Clearance)
		}
		p.roles[role] = def
	}
	for role := range t.Roles {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidPolicy, role)
		}
	}
	for perm, roles := range t.Permissions {
		if perm == "" {
			return nil, fmt.Errorf("%w: empty permission name", ErrInvalidPolicy)
		}
		set := make(map[Role]struct{}, len(roles))
		for _, role := range roles {
			if !role.Valid() {
				return nil, fmt.Errorf("%w: permission %s grants unknown role %q", ErrInvalidPolicy, perm, role)
			}
			set[role] = struct{}{}
		}
		p.grants[perm] = set
		p.permissions = append(p.permissions, perm)
	}
	slices.Sort(p.permissions)
	return p, nil
}

// Default builds the policy from DefaultTables.
func Default() (*Policy, error) {
	return NewPolicy(DefaultTables())
}

// MustDefault is like Default but panics on a configuration error.
func MustDefault() *Policy {
	p, err := Default()
	if err != nil {
		panic(err)
	}
	return p
}

// HasPermission reports whether role is granted perm. Unknown roles and
// permissions are denied.
func (p *Policy) HasPermission(role Role, perm Permission) bool {
	if p == nil {
		return false
	}
	set, ok := p.grants[perm]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

// ResolveRoleClearance returns the clearance tier of role. NewPolicy
// guarantees an entry for every valid role; an invalid role resolves to the
// narrowest tier.
func (p *Policy) ResolveRoleClearance(role Role) Clearance {
	if p == nil {
		return ClearanceParish
	}
	def, ok := p.roles[role]
	if !ok {
		return ClearanceParish
	}
	return def.Clearance
}

// Label returns the human-readable name of role.
func (p *Policy) Label(role Role) string {
	if p == nil {
		return string(role)
	}
	if def, ok := p.roles[role]; ok {
		return def.Label
	}
	return string(role)
}

// PermissionsFor lists the permissions granted to role, sorted by name.
func (p *Policy) PermissionsFor(role Role) []Permission {
	if p == nil {
		return nil
	}
	var granted []Permission
	for _, perm := range p.permissions {
		if _, ok := p.grants[perm][role]; ok {
			granted = append(granted, perm)
		}
	}
	return granted
}

// RoleSnapshot is the exported form of a role definition.
type RoleSnapshot struct {
	Role      Role      `json:"role"`
	Label     string    `json:"label"`
	Clearance Clearance `json:"clearance"`
}

// Snapshot is the JSON export consumed by UI guards.
type Snapshot struct {
	Clearances  []Clearance           `json:"clearances"`
	Roles       []RoleSnapshot        `json:"roles"`
	Permissions map[Permission][]Role `json:"permissions"`
}

// Snapshot exports a copy of the policy tables. A nil policy grants nothing
// and exports no roles.
func (p *Policy) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{Clearances: Clearances(), Roles: []RoleSnapshot{}, Permissions: map[Permission][]Role{}}
	}
	snap := Snapshot{
		Clearances:  Clearances(),
		Permissions: make(map[Permission][]Role, len(p.permissions)),
	}
	for _, role := range AllRoles() {
		def := p.roles[role]
		snap.Roles = append(snap.Roles, RoleSnapshot{Role: role, Label: def.Label, Clearance: def.Clearance})
	}
	for _, perm := range p.permissions {
		roles := make([]Role, 0, len(p.grants[perm]))
		for _, role := range AllRoles() {
			if _, ok := p.grants[perm][role]; ok {
				roles = append(roles, role)
			}
		}
		snap.Permissions[perm] = roles
	}
	return snap
}
