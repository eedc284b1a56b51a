package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency controls how often an alert is re-priced.
type Frequency string

const (
	FrequencyHourly Frequency = "hourly"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// ParseFrequency maps a raw value to a known frequency. Unknown or empty values become daily.
func ParseFrequency(s string) Frequency {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case FrequencyHourly:
		return FrequencyHourly
	case FrequencyWeekly:
		return FrequencyWeekly
	default:
		return FrequencyDaily
	}
}

// TravelClass is the cabin searched for.
type TravelClass string

const (
	ClassEconomy        TravelClass = "ECONOMY"
	ClassPremiumEconomy TravelClass = "PREMIUM_ECONOMY"
	ClassBusiness       TravelClass = "BUSINESS"
	ClassFirst          TravelClass = "FIRST"
)

// Route identifies an itinerary by IATA codes and ISO dates (YYYY-MM-DD).
type Route struct {
	From          string `json:"from"`
	To            string `json:"to"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
}

// Key returns the FROM-TO lookup key for the route.
func (r Route) Key() string {
	return strings.ToUpper(r.From) + "-" + strings.ToUpper(r.To)
}

// Passengers is the traveller mix for a search.
type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// PricePoint is one observation of the cheapest price for an alert.
type PricePoint struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// PriceAlert is a saved flight search with a target price.
type PriceAlert struct {
	ID           string           `json:"id"`
	Email        string           `json:"email,omitempty"`
	Route        Route            `json:"route"`
	TargetPrice  decimal.Decimal  `json:"target_price"`
	Currency     string           `json:"currency"`
	TravelClass  TravelClass      `json:"travel_class"`
	Passengers   Passengers       `json:"passengers"`
	Frequency    Frequency        `json:"frequency"`
	Active       bool             `json:"active"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
	LastChecked  *time.Time       `json:"last_checked"`
	PriceHistory []PricePoint     `json:"price_history"`
	TriggeredAt  *time.Time       `json:"triggered_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// SearchRequest returns the provider query for this alert.
func (a *PriceAlert) SearchRequest() SearchRequest {
	return SearchRequest{
		Route:       a.Route,
		Passengers:  a.Passengers,
		TravelClass: a.TravelClass,
		Currency:    a.Currency,
	}
}

// Observation is the subset of alert fields written after a successful price lookup.
type Observation struct {
	CurrentPrice decimal.Decimal
	PriceHistory []PricePoint
	LastChecked  time.Time
	UpdatedAt    time.Time
}

// SearchRequest is what a price provider needs to price a route.
type SearchRequest struct {
	Route       Route       `json:"route"`
	Passengers  Passengers  `json:"passengers"`
	TravelClass TravelClass `json:"travel_class"`
	Currency    string      `json:"currency,omitempty"`
}

// Offer is a single priced result from a provider.
type Offer struct {
	ID          string          `json:"id,omitempty"`
	Provider    string          `json:"provider"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Airline     string          `json:"airline,omitempty"`
	Stops       int             `json:"stops"`
	DepartureAt string          `json:"departure_at,omitempty"`
	ReturnAt    string          `json:"return_at,omitempty"`
	BookingLink string          `json:"booking_link,omitempty"`
}

// Priced reports whether the offer carries a usable fare.
func (o Offer) Priced() bool {
	return o.Price.IsPositive()
}

// Cheapest returns the lowest-priced offer. Offers without a positive price
// are ignored and ties keep the first one found.
func Cheapest(offers []Offer) (Offer, bool) {
	var best Offer
	found := false
	for _, o := range offers {
		if !o.Priced() {
			continue
		}
		if !found || o.Price.LessThan(best.Price) {
			best = o
			found = true
		}
	}
	return best, found
}

// InCurrency returns the offers quoted in currency. Offers with no currency
// are assumed to be in the requested one.
func InCurrency(offers []Offer, currency string) []Offer {
	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if o.Currency == "" || currency == "" || strings.EqualFold(o.Currency, currency) {
			out = append(out, o)
		}
	}
	return out
}
