package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ogulcanaydogan/fare-guardian/pkg/history"
	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/storage"
	"github.com/shopspring/decimal"
)

// Status is the result class of one alert evaluation.
type Status string

const (
	StatusUpdated   Status = "updated"
	StatusSkipped   Status = "skipped"
	StatusTriggered Status = "triggered"
)

// SkipReason explains a skipped evaluation. Skipped alerts are left untouched.
type SkipReason string

const (
	ReasonProviderError SkipReason = "provider_error"
	ReasonNoOffers      SkipReason = "no_offers"
	ReasonAlertGone     SkipReason = "alert_gone"
)

// Outcome is what happened to one alert during a check.
type Outcome struct {
	Status Status
	Reason SkipReason
	// Price is the cheapest fare seen; zero when skipped.
	Price decimal.Decimal
}

func (o Outcome) String() string {
	if o.Status == StatusSkipped {
		return fmt.Sprintf("%s(%s)", o.Status, o.Reason)
	}
	return string(o.Status)
}

func skipped(reason SkipReason) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

// AlertChecker evaluates a single alert.
type AlertChecker interface {
	Check(ctx context.Context, alert *model.PriceAlert) (Outcome, error)
}

// Evaluator re-prices one alert, records the observation, and triggers it
// when the cheapest fare is at or below the target.
type Evaluator struct {
	store           AlertStore
	provider        PriceProvider
	dispatcher      NotificationDispatcher
	clock           Clock
	historyCapacity int
	logger          *slog.Logger
}

// NewEvaluator creates an evaluator. A nil dispatcher still deactivates triggered alerts.
func NewEvaluator(store AlertStore, provider PriceProvider, dispatcher NotificationDispatcher, clock Clock, historyCapacity int, logger *slog.Logger) *Evaluator {
	if clock == nil {
		clock = SystemClock
	}
	if historyCapacity <= 0 {
		historyCapacity = history.DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		store:           store,
		provider:        provider,
		dispatcher:      dispatcher,
		clock:           clock,
		historyCapacity: historyCapacity,
		logger:          logger,
	}
}

// Check evaluates alert and updates it in place once the new state is persisted.
// Provider failures and results with no priced offer in the alert's currency
// are reported as skips, not errors.
// An error means persistence failed and the alert is left for the next due cycle.
func (e *Evaluator) Check(ctx context.Context, alert *model.PriceAlert) (Outcome, error) {
	log := e.logger.With("alert_id", alert.ID, "route", alert.Route.Key())

	offers, err := e.provider.Search(ctx, alert.SearchRequest())
	if err != nil {
		log.Warn("price search failed", "error", err)
		return skipped(ReasonProviderError), nil
	}

	usable := model.InCurrency(offers, alert.Currency)
	if dropped := len(offers) - len(usable); dropped > 0 {
		log.Debug("ignoring offers in another currency", "dropped", dropped, "currency", alert.Currency)
	}

	cheapest, ok := model.Cheapest(usable)
	if !ok {
		log.Info("no offers found", "returned", len(offers))
		return skipped(ReasonNoOffers), nil
	}

	now := e.clock.Now()
	h := history.FromPoints(e.historyCapacity, alert.PriceHistory)
	h.Push(model.PricePoint{Price: cheapest.Price, Timestamp: now})

	obs := model.Observation{
		CurrentPrice: cheapest.Price,
		PriceHistory: h.Points(),
		LastChecked:  now,
		UpdatedAt:    now,
	}
	if err := e.store.UpdateObservation(ctx, alert.ID, obs); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			log.Info("alert no longer active")
			return skipped(ReasonAlertGone), nil
		}
		return Outcome{}, fmt.Errorf("update alert %s: %w", alert.ID, err)
	}

	price := cheapest.Price
	checked := now
	alert.CurrentPrice = &price
	alert.LastChecked = &checked
	alert.PriceHistory = obs.PriceHistory
	alert.UpdatedAt = now

	if cheapest.Price.GreaterThan(alert.TargetPrice) {
		log.Debug("price above target",
			"price", cheapest.Price.String(),
			"target", alert.TargetPrice.String(),
		)
		return Outcome{Status: StatusUpdated, Price: cheapest.Price}, nil
	}

	log.Info("target price reached",
		"price", cheapest.Price.String(),
		"target", alert.TargetPrice.String(),
		"provider", cheapest.Provider,
	)

	if e.dispatcher != nil {
		res := e.dispatcher.SendPriceAlert(ctx, alert, cheapest.Price, cheapest)
		if !res.Success {
			log.Error("price alert notification failed", "message", res.Message)
		}
	} else {
		log.Warn("no notification dispatcher configured")
	}

	if err := e.store.Deactivate(ctx, alert.ID, now); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			log.Info("alert already deactivated")
			return skipped(ReasonAlertGone), nil
		}
		return Outcome{}, fmt.Errorf("deactivate alert %s: %w", alert.ID, err)
	}

	triggered := now
	alert.Active = false
	alert.TriggeredAt = &triggered
	return Outcome{Status: StatusTriggered, Price: cheapest.Price}, nil
}
