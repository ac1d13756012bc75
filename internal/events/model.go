// Package events schedules parish and diocesan events and takes RSVPs.
package events

import "time"

// Type classifies an event.
type Type string

const (
	TypeMass       Type = "mass"
	TypeRetreat    Type = "retreat"
	TypeFeast      Type = "feast"
	TypeMeeting    Type = "meeting"
	TypeSacrament  Type = "sacrament"
	TypeFundraiser Type = "fundraiser"
	TypeOther      Type = "other"
)

// Event is a scheduled gathering.
type Event struct {
	ID            string    `json:"id"`
	DioceseID     string    `json:"dioceseId"`
	ParishID      string    `json:"parishId,omitempty"`
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	Type          Type      `json:"type"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	AllDay        bool      `json:"allDay"`
	Location      string    `json:"location"`
	RequiresRSVP  bool      `json:"requiresRsvp"`
	MaxAttendees  *int      `json:"maxAttendees"`
	AttendeeCount int       `json:"attendeeCount"`
	Resources     []string  `json:"resources"`
	Notes         *string   `json:"notes"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// hasRoomFor reports whether guests more attendees fit.
func (e Event) hasRoomFor(guests int) bool {
	return e.MaxAttendees == nil || e.AttendeeCount+guests <= *e.MaxAttendees
}

// RSVPStatusConfirmed is the only status an RSVP is created with.
const RSVPStatusConfirmed = "confirmed"

// RSVP is a reservation for an event.
type RSVP struct {
	ID             string    `json:"id"`
	EventID        string    `json:"eventId"`
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	Email          *string   `json:"email"`
	Phone          *string   `json:"phone"`
	NumberOfGuests int       `json:"numberOfGuests"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Filters narrows event listings.
type Filters struct {
	DioceseID string
	ParishID  string
	Type      Type
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}
