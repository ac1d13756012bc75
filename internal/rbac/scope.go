package rbac

// MeetsClearance reports whether actual is at least as broad as required.
// Unknown tiers never satisfy and are never satisfied.
func MeetsClearance(actual, required Clearance) bool {
	a, ok := actual.rank()
	if !ok {
		return false
	}
	r, ok := required.rank()
	if !ok {
		return false
	}
	return a >= r
}

// HasClearance applies MeetsClearance to the principal's tier.
func HasClearance(p Principal, required Clearance) bool {
	return MeetsClearance(p.Clearance, required)
}

// CanAccessScope reports whether the principal may act on a resource in scope.
//
// Deanery clearance is checked at diocese granularity, the same as diocese
// clearance. Membership of a specific deanery is not enforced.
func CanAccessScope(p Principal, s Scope) bool {
	switch p.Clearance {
	case ClearanceECM:
		return true
	case ClearanceDiocese, ClearanceDeanery:
		return p.DioceseID == s.DioceseID
	default:
		if p.DioceseID != s.DioceseID {
			return false
		}
		return s.ParishID == "" || s.ParishID == p.ParishID
	}
}
