// models/user.go
package models

// UserRef is a user as returned by the user directory.
// An empty DepartureAirports list means "no preference".
type UserRef struct {
	ID                string   `db:"id" json:"id"`
	Email             string   `db:"email" json:"email"`
	Segment           Segment  `db:"segment" json:"segment"`
	DepartureAirports []string `db:"-" json:"departureAirports"`
}

// AcceptsAirport reports whether the user's preferences include code.
func (u UserRef) AcceptsAirport(code string) bool {
	if len(u.DepartureAirports) == 0 {
		return true
	}
	for _, a := range u.DepartureAirports {
		if a == code {
			return true
		}
	}
	return false
}

// UserQuery filters the user directory.
type UserQuery struct {
	DepartureAirport string
	Segments         []Segment
	Limit            int
}
