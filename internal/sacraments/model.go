// Package sacraments records baptisms, confirmations, marriages, ordinations
// and anointings.
package sacraments

import (
	"fmt"
	"strings"
	"time"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

// Type names a sacrament.
type Type string

const (
	TypeBaptism      Type = "baptism"
	TypeConfirmation Type = "confirmation"
	TypeMarriage     Type = "marriage"
	TypeHolyOrders   Type = "holy_orders"
	TypeAnointing    Type = "anointing"
)

// Types lists every sacrament type in display order.
func Types() []Type {
	return []Type{TypeBaptism, TypeConfirmation, TypeMarriage, TypeHolyOrders, TypeAnointing}
}

// ParseType accepts a type name. The URL form "holy-orders" is accepted too.
func ParseType(raw string) (Type, error) {
	t := Type(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	for _, known := range Types() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown sacrament type %q", httpx.ErrValidation, raw)
}

// Prefix is the id prefix of the type.
func (t Type) Prefix() string {
	switch t {
	case TypeBaptism:
		return "BAP"
	case TypeConfirmation:
		return "CON"
	case TypeMarriage:
		return "MAR"
	case TypeHolyOrders:
		return "ORD"
	case TypeAnointing:
		return "ANO"
	}
	return "SAC"
}

// Title is the upper-case display name, e.g. "HOLY ORDERS".
func (t Type) Title() string {
	return strings.ToUpper(strings.ReplaceAll(string(t), "_", " "))
}

// dioceseScoped types are recorded by the diocese rather than a parish.
func (t Type) dioceseScoped() bool {
	return t == TypeHolyOrders
}

// Sacrament is a sacramental register entry.
type Sacrament struct {
	ID              string     `json:"id"`
	Type            Type       `json:"type"`
	DioceseID       string     `json:"dioceseId"`
	ParishID        string     `json:"parishId,omitempty"`
	MemberID        *string    `json:"memberId"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Date            time.Time  `json:"date"`
	Location        string     `json:"location"`
	OfficiantName   string     `json:"officiantName"`
	RegistryNumber  *string    `json:"registryNumber"`
	Notes           *string    `json:"notes"`
	Details         Details    `json:"details"`
	Approved        bool       `json:"approved"`
	ApprovedBy      *string    `json:"approvedBy"`
	ApprovedAt      *time.Time `json:"approvedAt"`
	CertificateURL  *string    `json:"certificateUrl"`
	CertificateHash *string    `json:"certificateHash"`
	CreatedBy       string     `json:"createdBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// FullName joins the subject's names.
func (s Sacrament) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Field exposes the searchable fields.
func (s Sacrament) Field(name string) (any, bool) {
	switch name {
	case "firstName":
		return s.FirstName, true
	case "lastName":
		return s.LastName, true
	case "fullName":
		return s.FullName(), true
	case "groomName":
		if s.Details.Marriage != nil {
			return s.Details.Marriage.GroomName(), true
		}
	case "brideName":
		if s.Details.Marriage != nil {
			return s.Details.Marriage.BrideName(), true
		}
	}
	return nil, false
}

// Details holds the type-specific fields. Exactly one member is set, matching
// the sacrament type. It is stored as JSONB.
type Details struct {
	Baptism      *BaptismDetails      `json:"baptism,omitempty"`
	Confirmation *ConfirmationDetails `json:"confirmation,omitempty"`
	Marriage     *MarriageDetails     `json:"marriage,omitempty"`
	HolyOrders   *HolyOrdersDetails   `json:"holyOrders,omitempty"`
	Anointing    *AnointingDetails    `json:"anointing,omitempty"`
}

// BaptismDetails are the baptism register fields.
type BaptismDetails struct {
	BaptismType     string `json:"baptismType" validate:"omitempty,oneof=infant adult"`
	FatherName      string `json:"fatherName,omitempty" validate:"max=200"`
	MotherName      string `json:"motherName,omitempty" validate:"max=200"`
	GodfatherName   string `json:"godfatherName,omitempty" validate:"max=200"`
	GodfatherParish string `json:"godfatherParish,omitempty" validate:"max=200"`
	GodmotherName   string `json:"godmotherName,omitempty" validate:"max=200"`
	GodmotherParish string `json:"godmotherParish,omitempty" validate:"max=200"`
}

// ConfirmationDetails are the confirmation register fields.
type ConfirmationDetails struct {
	ConfirmationName string `json:"confirmationName,omitempty" validate:"max=100"`
	SponsorName      string `json:"sponsorName,omitempty" validate:"max=200"`
	SponsorParish    string `json:"sponsorParish,omitempty" validate:"max=200"`
	Bishop           string `json:"bishop" validate:"required,max=200"`
}

// MarriageDetails are the marriage register fields.
type MarriageDetails struct {
	GroomMemberID              *string `json:"groomMemberId,omitempty"`
	GroomFirstName             string  `json:"groomFirstName" validate:"required,max=100"`
	GroomLastName              string  `json:"groomLastName" validate:"required,max=100"`
	BrideMemberID              *string `json:"brideMemberId,omitempty"`
	BrideFirstName             string  `json:"brideFirstName" validate:"required,max=100"`
	BrideLastName              string  `json:"brideLastName" validate:"required,max=100"`
	Witness1Name               string  `json:"witness1Name" validate:"required,max=200"`
	Witness2Name               string  `json:"witness2Name" validate:"required,max=200"`
	BannsPublished             bool    `json:"bannsPublished"`
	PremarriageCourseCompleted bool    `json:"premarriageCourseCompleted"`
	CivilRegistrationNumber    string  `json:"civilRegistrationNumber,omitempty" validate:"max=100"`
}

// GroomName is the groom's full name.
func (d MarriageDetails) GroomName() string {
	return strings.TrimSpace(d.GroomFirstName + " " + d.GroomLastName)
}

// BrideName is the bride's full name.
func (d MarriageDetails) BrideName() string {
	return strings.TrimSpace(d.BrideFirstName + " " + d.BrideLastName)
}

// HolyOrdersDetails are the ordination register fields.
type HolyOrdersDetails struct {
	OrderType     string `json:"orderType" validate:"required,oneof=deacon priest bishop"`
	Bishop        string `json:"bishop" validate:"required,max=200"`
	Incardination string `json:"incardination,omitempty" validate:"max=100"`
}

// AnointingDetails are the anointing register fields.
type AnointingDetails struct {
	Reason    string `json:"reason,omitempty" validate:"max=500"`
	Condition string `json:"condition,omitempty" validate:"max=500"`
}

// SearchMode selects how the name filter is applied.
type SearchMode string

const (
	SearchFuzzy  SearchMode = "fuzzy"
	SearchSimple SearchMode = "simple"
)

// Filters narrows sacrament listings and searches.
type Filters struct {
	Type      Type
	DioceseID string
	ParishID  string
	Name      string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Mode      SearchMode
}

// Result is a listed sacrament. Score is set for fuzzy name searches.
type Result struct {
	Sacrament
	Score *float64 `json:"score,omitempty"`
}
