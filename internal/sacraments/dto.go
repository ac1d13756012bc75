package sacraments

import "encoding/json"

// CreateRequest is the body of POST /api/sacraments/{type}. Details is decoded
// into the details struct of the path type. For marriages the subject names
// default to the groom's.
type CreateRequest struct {
	DioceseID      string          `json:"dioceseId" validate:"required,max=64"`
	ParishID       string          `json:"parishId,omitempty" validate:"max=64"`
	MemberID       *string         `json:"memberId,omitempty"`
	FirstName      string          `json:"firstName,omitempty" validate:"max=100"`
	LastName       string          `json:"lastName,omitempty" validate:"max=100"`
	Date           string          `json:"date" validate:"required"`
	Location       string          `json:"location" validate:"required,max=200"`
	OfficiantName  string          `json:"officiantName,omitempty" validate:"max=200"`
	RegistryNumber *string         `json:"registryNumber,omitempty" validate:"omitempty,max=64"`
	Notes          *string         `json:"notes,omitempty" validate:"omitempty,max=4000"`
	Details        json.RawMessage `json:"details,omitempty"`
}

// UpdateRequest is a partial update of PUT /api/sacraments/record/{id}. When
// Details is present it replaces the stored details of the record's type.
type UpdateRequest struct {
	FirstName      *string         `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName       *string         `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Date           *string         `json:"date,omitempty"`
	Location       *string         `json:"location,omitempty" validate:"omitempty,max=200"`
	OfficiantName  *string         `json:"officiantName,omitempty" validate:"omitempty,max=200"`
	RegistryNumber *string         `json:"registryNumber,omitempty" validate:"omitempty,max=64"`
	Notes          *string         `json:"notes,omitempty" validate:"omitempty,max=4000"`
	Details        json.RawMessage `json:"details,omitempty"`
}

type listResponse struct {
	Success bool     `json:"success"`
	Data    []Result `json:"data"`
	Count   int      `json:"count"`
}

type recordResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type certificateResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	Queue   string `json:"queue"`
	Message string `json:"message"`
}
