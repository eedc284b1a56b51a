package monitor

import (
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
)

// Thresholds maps each check frequency to the minimum time between checks.
type Thresholds struct {
	Hourly time.Duration `json:"hourly"`
	Daily  time.Duration `json:"daily"`
	Weekly time.Duration `json:"weekly"`
}

// DefaultThresholds returns 1h / 24h / 168h.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Hourly: time.Hour,
		Daily:  24 * time.Hour,
		Weekly: 7 * 24 * time.Hour,
	}
}

// FrequencyGate decides whether an alert is due for re-pricing.
type FrequencyGate struct {
	thresholds Thresholds
}

// NewFrequencyGate creates a gate. Non-positive thresholds fall back to the defaults.
func NewFrequencyGate(t Thresholds) *FrequencyGate {
	def := DefaultThresholds()
	if t.Hourly <= 0 {
		t.Hourly = def.Hourly
	}
	if t.Daily <= 0 {
		t.Daily = def.Daily
	}
	if t.Weekly <= 0 {
		t.Weekly = def.Weekly
	}
	return &FrequencyGate{thresholds: t}
}

// Threshold returns the re-check interval for f. Unknown frequencies use the daily threshold.
func (g *FrequencyGate) Threshold(f model.Frequency) time.Duration {
	switch f {
	case model.FrequencyHourly:
		return g.thresholds.Hourly
	case model.FrequencyWeekly:
		return g.thresholds.Weekly
	default:
		return g.thresholds.Daily
	}
}

// IsDue reports whether the alert should be checked at now.
// An alert that was never checked is always due; otherwise the boundary is inclusive.
func (g *FrequencyGate) IsDue(alert *model.PriceAlert, now time.Time) bool {
	if alert.LastChecked == nil {
		return true
	}
	return now.Sub(*alert.LastChecked) >= g.Threshold(alert.Frequency)
}

// NextDue returns when the alert next becomes due. The zero time means now.
func (g *FrequencyGate) NextDue(alert *model.PriceAlert) time.Time {
	if alert.LastChecked == nil {
		return time.Time{}
	}
	return alert.LastChecked.Add(g.Threshold(alert.Frequency))
}

// Filter returns the due alerts, preserving order.
func (g *FrequencyGate) Filter(alerts []model.PriceAlert, now time.Time) []model.PriceAlert {
	due := make([]model.PriceAlert, 0, len(alerts))
	for i := range alerts {
		if g.IsDue(&alerts[i], now) {
			due = append(due, alerts[i])
		}
	}
	return due
}
