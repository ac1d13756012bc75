package members

// CreateMemberRequest is the body of POST /api/members.
type CreateMemberRequest struct {
	DioceseID    string  `json:"dioceseId" validate:"required,max=64"`
	ParishID     string  `json:"parishId" validate:"required,max=64"`
	FirstName    string  `json:"firstName" validate:"required,max=100"`
	MiddleName   *string `json:"middleName,omitempty" validate:"omitempty,max=100"`
	LastName     string  `json:"lastName" validate:"required,max=100"`
	DateOfBirth  *string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PlaceOfBirth *string `json:"placeOfBirth,omitempty" validate:"omitempty,max=200"`
	Gender       string  `json:"gender" validate:"required,oneof=male female"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Address      *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Baptized     bool    `json:"baptized"`
	Confirmed    bool    `json:"confirmed"`
	Married      bool    `json:"married"`
	FatherID     *string `json:"fatherId,omitempty"`
	MotherID     *string `json:"motherId,omitempty"`
	SpouseID     *string `json:"spouseId,omitempty"`
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// UpdateMemberRequest is a partial update. Nil fields are left unchanged.
// The diocese and parish of a member cannot be changed.
type UpdateMemberRequest struct {
	FirstName    *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	MiddleName   *string `json:"middleName,omitempty" validate:"omitempty,max=100"`
	LastName     *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	DateOfBirth  *string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PlaceOfBirth *string `json:"placeOfBirth,omitempty" validate:"omitempty,max=200"`
	Gender       *string `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Address      *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Baptized     *bool   `json:"baptized,omitempty"`
	Confirmed    *bool   `json:"confirmed,omitempty"`
	Married      *bool   `json:"married,omitempty"`
	SpouseID     *string `json:"spouseId,omitempty"`
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

type listResponse struct {
	Success bool     `json:"success"`
	Data    []Result `json:"data"`
	Count   int      `json:"count"`
}

type memberResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}
