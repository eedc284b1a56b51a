// Package monitor re-prices active flight alerts on a schedule and triggers
// notifications once a fare drops to its target.
package monitor

import (
	"context"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/notify"
	"github.com/shopspring/decimal"
)

// AlertStore is the subset of alert storage the monitor needs.
type AlertStore interface {
	QueryActiveAlerts(ctx context.Context) ([]model.PriceAlert, error)
	UpdateObservation(ctx context.Context, id string, obs model.Observation) error
	Deactivate(ctx context.Context, id string, triggeredAt time.Time) error
}

// PriceProvider searches current fares for a route.
type PriceProvider interface {
	Search(ctx context.Context, req model.SearchRequest) ([]model.Offer, error)
}

// NotificationDispatcher tells the alert owner their target price was reached.
type NotificationDispatcher interface {
	SendPriceAlert(ctx context.Context, alert *model.PriceAlert, price decimal.Decimal, offer model.Offer) notify.Result
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to a Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// Sleeper blocks for d, returning early with ctx's error if ctx is done first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
