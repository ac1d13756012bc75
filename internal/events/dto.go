package events

// CreateRequest is the body of POST /api/events.
type CreateRequest struct {
	DioceseID    string   `json:"dioceseId" validate:"required,max=64"`
	ParishID     string   `json:"parishId,omitempty" validate:"max=64"`
	Title        string   `json:"title" validate:"required,max=200"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=4000"`
	Type         Type     `json:"type" validate:"required,oneof=mass retreat feast meeting sacrament fundraiser other"`
	StartDate    string   `json:"startDate" validate:"required"`
	EndDate      string   `json:"endDate,omitempty"`
	AllDay       bool     `json:"allDay"`
	Location     string   `json:"location" validate:"required,max=200"`
	RequiresRSVP bool     `json:"requiresRsvp"`
	MaxAttendees *int     `json:"maxAttendees,omitempty" validate:"omitempty,min=1"`
	Resources    []string `json:"resources,omitempty" validate:"max=50,dive,max=200"`
	Notes        *string  `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// UpdateRequest is a partial update of PUT /api/events/{id}.
type UpdateRequest struct {
	Title        *string  `json:"title,omitempty" validate:"omitempty,max=200"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=4000"`
	Type         *Type    `json:"type,omitempty" validate:"omitempty,oneof=mass retreat feast meeting sacrament fundraiser other"`
	StartDate    *string  `json:"startDate,omitempty"`
	EndDate      *string  `json:"endDate,omitempty"`
	AllDay       *bool    `json:"allDay,omitempty"`
	Location     *string  `json:"location,omitempty" validate:"omitempty,max=200"`
	RequiresRSVP *bool    `json:"requiresRsvp,omitempty"`
	MaxAttendees *int     `json:"maxAttendees,omitempty" validate:"omitempty,min=1"`
	Resources    []string `json:"resources,omitempty" validate:"max=50,dive,max=200"`
	Notes        *string  `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// RSVPRequest is the body of POST /api/events/{id}/rsvp.
type RSVPRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	NumberOfGuests *int    `json:"numberOfGuests,omitempty" validate:"omitempty,min=1,max=100"`
}

type listResponse struct {
	Success bool    `json:"success"`
	Data    []Event `json:"data"`
	Count   int     `json:"count"`
}

type rsvpListResponse struct {
	Success bool   `json:"success"`
	Data    []RSVP `json:"data"`
	Count   int    `json:"count"`
}

type eventResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}
