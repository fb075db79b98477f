// Package catalog holds the static, read-only list of bookable medical
// services.
package catalog

// Gender matches the values accepted on a booking request.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
	Other  Gender = "other"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	return g == Male || g == Female || g == Other
}

// Service is one bookable medical service.
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	BasePrice    float64  `json:"base_price"`
	AvailableFor []Gender `json:"available_for"`
}

// OfferedTo reports whether the service is offered for the given gender.
func (s Service) OfferedTo(g Gender) bool {
	for _, a := range s.AvailableFor {
		if a == g {
			return true
		}
	}
	return false
}

var services = []Service{
	{ID: "gyn-001", Name: "Gynecological Consultation", BasePrice: 800, AvailableFor: []Gender{Female}},
	{ID: "gyn-002", Name: "Pap Smear Test", BasePrice: 600, AvailableFor: []Gender{Female}},
	{ID: "gyn-003", Name: "Mammography", BasePrice: 1200, AvailableFor: []Gender{Female}},
	{ID: "male-001", Name: "Prostate Examination", BasePrice: 700, AvailableFor: []Gender{Male}},
	{ID: "male-002", Name: "Testosterone Level Test", BasePrice: 900, AvailableFor: []Gender{Male}},
	{ID: "male-003", Name: "Male Fertility Test", BasePrice: 1500, AvailableFor: []Gender{Male}},
	{ID: "common-001", Name: "General Health Checkup", BasePrice: 500, AvailableFor: []Gender{Male, Female, Other}},
	{ID: "common-002", Name: "Blood Test", BasePrice: 400, AvailableFor: []Gender{Male, Female, Other}},
	{ID: "common-003", Name: "ECG", BasePrice: 600, AvailableFor: []Gender{Male, Female, Other}},
	{ID: "common-004", Name: "X-Ray", BasePrice: 800, AvailableFor: []Gender{Male, Female, Other}},
}

// ServiceByID resolves a service id to its record.
func ServiceByID(id string) (Service, bool) {
	for _, s := range services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// All returns every service in catalog order.
func All() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}

// ServicesFor lists the services offered for a gender.
func ServicesFor(g Gender) []Service {
	var out []Service
	for _, s := range services {
		if s.OfferedTo(g) {
			out = append(out, s)
		}
	}
	return out
}
