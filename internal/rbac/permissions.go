package rbac

// Permission names an action guarded by the policy.
type Permission string

// Sacrament permissions.
const (
	PermCreateSacrament     Permission = "CREATE_SACRAMENT"
	PermEditSacrament       Permission = "EDIT_SACRAMENT"
	PermDeleteSacrament     Permission = "DELETE_SACRAMENT"
	PermApproveSacrament    Permission = "APPROVE_SACRAMENT"
	PermViewSacrament       Permission = "VIEW_SACRAMENT"
	PermGenerateCertificate Permission = "GENERATE_CERTIFICATE"
)

// Member permissions.
const (
	PermCreateMember Permission = "CREATE_MEMBER"
	PermEditMember   Permission = "EDIT_MEMBER"
	PermDeleteMember Permission = "DELETE_MEMBER"
	PermViewMember   Permission = "VIEW_MEMBER"
)

// Event permissions.
const (
	PermCreateEvent Permission = "CREATE_EVENT"
	PermEditEvent   Permission = "EDIT_EVENT"
	PermDeleteEvent Permission = "DELETE_EVENT"
	PermViewEvent   Permission = "VIEW_EVENT"
)

// Administrative permissions.
const (
	PermManageUsers   Permission = "MANAGE_USERS"
	PermManageDiocese Permission = "MANAGE_DIOCESE"
	PermViewAuditLogs Permission = "VIEW_AUDIT_LOGS"
	PermViewReports   Permission = "VIEW_REPORTS"
)

// SacramentScopes lists all permissions related to sacrament records.
func SacramentScopes() []Permission {
	return []Permission{
		PermCreateSacrament,
		PermEditSacrament,
		PermDeleteSacrament,
		PermApproveSacrament,
		PermViewSacrament,
		PermGenerateCertificate,
	}
}

// MemberScopes lists all permissions related to member profiles.
func MemberScopes() []Permission {
	return []Permission{PermCreateMember, PermEditMember, PermDeleteMember, PermViewMember}
}

// EventScopes lists all permissions related to events.
func EventScopes() []Permission {
	return []Permission{PermCreateEvent, PermEditEvent, PermDeleteEvent, PermViewEvent}
}

// AdminScopes lists the administrative permissions.
func AdminScopes() []Permission {
	return []Permission{PermManageUsers, PermManageDiocese, PermViewAuditLogs, PermViewReports}
}

// AllPermissions returns every known permission.
func AllPermissions() []Permission {
	all := make([]Permission, 0, 18)
	all = append(all, SacramentScopes()...)
	all = append(all, MemberScopes()...)
	all = append(all, EventScopes()...)
	all = append(all, AdminScopes()...)
	return all
}
