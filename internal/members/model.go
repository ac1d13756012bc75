// Package members manages parish member records and their family links.
package members

import (
	"strings"
	"time"
)

// Gender of a member.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Member is a parishioner record.
type Member struct {
	ID             string     `json:"id"`
	DioceseID      string     `json:"dioceseId"`
	ParishID       string     `json:"parishId"`
	FirstName      string     `json:"firstName"`
	MiddleName     *string    `json:"middleName"`
	LastName       string     `json:"lastName"`
	DateOfBirth    *time.Time `json:"dateOfBirth"`
	PlaceOfBirth   *string    `json:"placeOfBirth"`
	Gender         Gender     `json:"gender"`
	Phone          *string    `json:"phone"`
	Email          *string    `json:"email"`
	Address        *string    `json:"address"`
	Baptized       bool       `json:"baptized"`
	Confirmed      bool       `json:"confirmed"`
	Married        bool       `json:"married"`
	FatherID       *string    `json:"fatherId"`
	MotherID       *string    `json:"motherId"`
	SpouseID       *string    `json:"spouseId"`
	ChildrenIDs    []string   `json:"childrenIds"`
	BaptismID      *string    `json:"baptismId"`
	ConfirmationID *string    `json:"confirmationId"`
	MarriageID     *string    `json:"marriageId"`
	Notes          *string    `json:"notes"`
	CreatedBy      string     `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FullName joins the first, middle and last names.
func (m Member) FullName() string {
	parts := []string{m.FirstName}
	if m.MiddleName != nil && *m.MiddleName != "" {
		parts = append(parts, *m.MiddleName)
	}
	parts = append(parts, m.LastName)
	return strings.Join(parts, " ")
}

// Field exposes the searchable fields.
func (m Member) Field(name string) (any, bool) {
	switch name {
	case "firstName":
		return m.FirstName, true
	case "middleName":
		return deref(m.MiddleName)
	case "lastName":
		return m.LastName, true
	case "fullName":
		return m.FullName(), true
	case "email":
		return deref(m.Email)
	case "phone":
		return deref(m.Phone)
	}
	return nil, false
}

func deref(s *string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

// familyIDs lists the linked relatives, father first.
func (m Member) familyIDs() []string {
	var ids []string
	for _, id := range []*string{m.FatherID, m.MotherID, m.SpouseID} {
		if id != nil && *id != "" {
			ids = append(ids, *id)
		}
	}
	return append(ids, m.ChildrenIDs...)
}

// Relative is the summary of a family member returned with includeFamily.
type Relative struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	MiddleName  *string    `json:"middleName,omitempty"`
	LastName    string     `json:"lastName"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Gender      Gender     `json:"gender"`
}

func relativeOf(m Member) Relative {
	return Relative{
		ID:          m.ID,
		FirstName:   m.FirstName,
		MiddleName:  m.MiddleName,
		LastName:    m.LastName,
		DateOfBirth: m.DateOfBirth,
		Gender:      m.Gender,
	}
}

// Family groups the relatives of a member. Links to records that no longer
// exist are dropped.
type Family struct {
	Father   *Relative  `json:"father,omitempty"`
	Mother   *Relative  `json:"mother,omitempty"`
	Spouse   *Relative  `json:"spouse,omitempty"`
	Children []Relative `json:"children"`
}

// MemberDetail is a member with its optional family.
type MemberDetail struct {
	Member
	Family *Family `json:"family,omitempty"`
}

// SearchMode selects how the search query is applied.
type SearchMode string

const (
	SearchFuzzy  SearchMode = "fuzzy"
	SearchSimple SearchMode = "simple"
)

// ListFilters narrows member listings.
type ListFilters struct {
	DioceseID string
	ParishID  string
	Limit     int
	Search    string
	Mode      SearchMode
}

// Result is a listed member. Score is set for fuzzy searches.
type Result struct {
	Member
	Score *float64 `json:"score,omitempty"`
}
