// models/itinerary.go
package models

import "time"

// Cabin classes accepted by the providers.
const (
	CabinEconomy        = "economy"
	CabinPremiumEconomy = "premium_economy"
	CabinBusiness       = "business"
	CabinFirst          = "first"
)

// PricedItinerary is one priced offer returned by an upstream provider.
// It is never persisted directly; price_history keeps only the observed prices.
type PricedItinerary struct {
	Price           float64    `json:"price"`
	Currency        string     `json:"currency"`
	Cabin           string     `json:"cabin"`
	Stops           int        `json:"stops"`
	DepartureDate   time.Time  `json:"departureDate"`
	ReturnDate      *time.Time `json:"returnDate,omitempty"`
	Airline         string     `json:"airline"`
	DurationMinutes int        `json:"durationMinutes"`
	DeepLink        string     `json:"deepLink"`
}

// SearchOptions are the per-query parameters on top of the route itself.
type SearchOptions struct {
	DepartureDate time.Time  `json:"departureDate"`
	ReturnDate    *time.Time `json:"returnDate,omitempty"`
	Adults        int        `json:"adults"`
	Children      int        `json:"children"`
	Infants       int        `json:"infants"`
	Cabin         string     `json:"cabin"`
	Currency      string     `json:"currency"`
}

// PricePoint is one observed price kept for history.
type PricePoint struct {
	Origin        string    `db:"origin" json:"origin"`
	Destination   string    `db:"destination" json:"destination"`
	DepartureDate time.Time `db:"departure_date" json:"departureDate"`
	Price         float64   `db:"price" json:"price"`
	Currency      string    `db:"currency" json:"currency"`
	Airline       string    `db:"airline" json:"airline"`
	ObservedAt    time.Time `db:"observed_at" json:"observedAt"`
}
