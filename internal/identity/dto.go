package identity

// SetClaimsRequest assigns a role and scope to a user. ClearanceLevel is
// optional and, when sent, must match the role.
type SetClaimsRequest struct {
	UserID         string `json:"userId" validate:"required,max=128"`
	Email          string `json:"email,omitempty" validate:"omitempty,email"`
	Role           string `json:"role" validate:"required"`
	ClearanceLevel string `json:"clearanceLevel,omitempty"`
	DioceseID      string `json:"dioceseId,omitempty" validate:"max=64"`
	ParishID       string `json:"parishId,omitempty" validate:"max=64"`
	DeaneryID      string `json:"deaneryId,omitempty" validate:"max=64"`
}

type setClaimsResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Claims  UserClaims `json:"claims"`
}

type getClaimsResponse struct {
	Success bool       `json:"success"`
	UserID  string     `json:"userId"`
	Email   string     `json:"email,omitempty"`
	Claims  UserClaims `json:"claims"`
}
