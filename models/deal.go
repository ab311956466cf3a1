// models/deal.go
package models

import "time"

// Deal is an itinerary whose discount cleared the adaptive threshold.
// Deals are immutable once created.
type Deal struct {
	ID                    string     `db:"id" json:"id"`
	Origin                string     `db:"origin" json:"origin"`
	Destination           string     `db:"destination" json:"destination"`
	Tier                  int        `db:"tier" json:"tier"`
	Airline               string     `db:"airline" json:"airline"`
	Cabin                 string     `db:"cabin" json:"cabin"`
	Stops                 int        `db:"stops" json:"stops"`
	Currency              string     `db:"currency" json:"currency"`
	CurrentPrice          float64    `db:"current_price" json:"currentPrice"`
	OriginalPriceEstimate float64    `db:"original_price_estimate" json:"originalPriceEstimate"`
	DiscountPercentage    float64    `db:"discount_percentage" json:"discountPercentage"`
	ValidationScore       float64    `db:"validation_score" json:"validationScore"`
	Threshold             float64    `db:"threshold_pct" json:"threshold"`
	Reasoning             string     `db:"reasoning" json:"reasoning"`
	Outlier               bool       `db:"outlier" json:"outlier"`
	DepartureDate         time.Time  `db:"departure_date" json:"departureDate"`
	ReturnDate            *time.Time `db:"return_date" json:"returnDate,omitempty"`
	DeepLink              string     `db:"deep_link" json:"deepLink"`
	DetectedAt            time.Time  `db:"detected_at" json:"detectedAt"`
	ValidUntil            time.Time  `db:"valid_until" json:"validUntil"`
}

// Expired reports whether the deal is past its validity window.
func (d Deal) Expired(now time.Time) bool {
	return !now.Before(d.ValidUntil)
}

// ThresholdDecision is the outcome of the adaptive threshold for one itinerary.
type ThresholdDecision struct {
	Threshold  float64 `json:"threshold"`
	IsValid    bool    `json:"isValid"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Alert statuses.
const (
	AlertStatusSent         = "sent"
	AlertStatusFailed       = "failed"
	AlertStatusNoRecipients = "no_recipients"
)

// Alert records the dispatch of one deal to its recipients.
type Alert struct {
	ID         string    `db:"id" json:"id"`
	DealID     string    `db:"deal_id" json:"dealId"`
	Recipients []string  `db:"-" json:"recipients"`
	Status     string    `db:"status" json:"status"`
	Error      string    `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Notification is one {recipient, deal} pair handed to the email service.
type Notification struct {
	Recipient UserRef `json:"recipient"`
	Deal      Deal    `json:"deal"`
}
