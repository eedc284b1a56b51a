package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/shopspring/decimal"
)

// PriceNotification is sent when an alert's target price has been reached.
type PriceNotification struct {
	AlertID      string            `json:"alert_id"`
	Email        string            `json:"email"`
	Route        model.Route       `json:"route"`
	TravelClass  model.TravelClass `json:"travel_class"`
	Currency     string            `json:"currency"`
	TargetPrice  decimal.Decimal   `json:"target_price"`
	CurrentPrice decimal.Decimal   `json:"current_price"`
	Offer        model.Offer       `json:"offer"`
	TriggeredAt  time.Time         `json:"triggered_at"`
	Message      string            `json:"message"`
}

// NewPriceNotification builds the notification for a triggered alert.
func NewPriceNotification(alert *model.PriceAlert, price decimal.Decimal, offer model.Offer, at time.Time) PriceNotification {
	n := PriceNotification{
		AlertID:      alert.ID,
		Email:        alert.Email,
		Route:        alert.Route,
		TravelClass:  alert.TravelClass,
		Currency:     alert.Currency,
		TargetPrice:  alert.TargetPrice,
		CurrentPrice: price,
		Offer:        offer,
		TriggeredAt:  at.UTC(),
	}
	n.Message = fmt.Sprintf("%s is now %s %s (target %s %s)",
		n.RouteLabel(), price.StringFixed(2), n.Currency, alert.TargetPrice.StringFixed(2), n.Currency)
	return n
}

// Savings is how far below the target the current price is.
func (n PriceNotification) Savings() decimal.Decimal {
	return n.TargetPrice.Sub(n.CurrentPrice)
}

// RouteLabel renders the route for humans, e.g. "LHR → JFK (2026-12-01 / 2026-12-10)".
func (n PriceNotification) RouteLabel() string {
	label := fmt.Sprintf("%s → %s (%s", n.Route.From, n.Route.To, n.Route.DepartureDate)
	if n.Route.ReturnDate != "" {
		label += " / " + n.Route.ReturnDate
	}
	return label + ")"
}

// Notifier delivers price notifications to an external system.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a notification. Implementations must be safe for concurrent use.
	Send(ctx context.Context, n PriceNotification) error
}
