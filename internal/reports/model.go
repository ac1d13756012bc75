// Package reports aggregates sacrament statistics per diocese and year.
package reports

// SacramentStats counts a diocese's sacraments for one year. ByMonth is keyed
// by short month name and only holds months with records.
type SacramentStats struct {
	DioceseID    string         `json:"dioceseId"`
	Year         int            `json:"year"`
	Baptism      int            `json:"baptism"`
	Confirmation int            `json:"confirmation"`
	Marriage     int            `json:"marriage"`
	HolyOrders   int            `json:"holy_orders"`
	Anointing    int            `json:"anointing"`
	Total        int            `json:"total"`
	ByMonth      map[string]int `json:"byMonth"`
}

// add records n sacraments of type t.
func (s *SacramentStats) add(t string, n int) {
	switch t {
	case "baptism":
		s.Baptism += n
	case "confirmation":
		s.Confirmation += n
	case "marriage":
		s.Marriage += n
	case "holy_orders":
		s.HolyOrders += n
	case "anointing":
		s.Anointing += n
	}
	s.Total += n
}

type statsResponse struct {
	Success bool           `json:"success"`
	Data    SacramentStats `json:"data"`
}
