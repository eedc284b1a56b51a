package monitor_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/notify"
	"github.com/ogulcanaydogan/fare-guardian/pkg/storage"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

var baseTime = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory AlertStore that keeps insertion order.
type fakeStore struct {
	mu     sync.Mutex
	order  []string
	alerts map[string]*model.PriceAlert

	queryErr      error
	updateErr     error
	deactivateErr error

	updates     int
	deactivates int
}

func newFakeStore(alerts ...*model.PriceAlert) *fakeStore {
	s := &fakeStore{alerts: make(map[string]*model.PriceAlert)}
	for _, a := range alerts {
		s.put(a)
	}
	return s
}

func (s *fakeStore) put(a *model.PriceAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	cp := *a
	s.alerts[a.ID] = &cp
}

func (s *fakeStore) get(id string) model.PriceAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.alerts[id]
}

func (s *fakeStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, id)
}

func (s *fakeStore) QueryActiveAlerts(_ context.Context) ([]model.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []model.PriceAlert
	for _, id := range s.order {
		a, ok := s.alerts[id]
		if ok && a.Active {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateObservation(_ context.Context, id string, obs model.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	a, ok := s.alerts[id]
	if !ok || !a.Active {
		return storage.ErrAlertNotFound
	}
	price := obs.CurrentPrice
	checked := obs.LastChecked
	a.CurrentPrice = &price
	a.LastChecked = &checked
	a.PriceHistory = append([]model.PricePoint(nil), obs.PriceHistory...)
	a.UpdatedAt = obs.UpdatedAt
	return nil
}

func (s *fakeStore) Deactivate(_ context.Context, id string, triggeredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivates++
	if s.deactivateErr != nil {
		return s.deactivateErr
	}
	a, ok := s.alerts[id]
	if !ok || !a.Active {
		return storage.ErrAlertNotFound
	}
	a.Active = false
	a.TriggeredAt = &triggeredAt
	return nil
}

// fakeProvider returns the same offers (or error) for every search.
type fakeProvider struct {
	mu       sync.Mutex
	offers   []model.Offer
	err      error
	requests []model.SearchRequest
}

func offersAt(prices ...int64) []model.Offer {
	offers := make([]model.Offer, 0, len(prices))
	for _, p := range prices {
		offers = append(offers, model.Offer{Provider: "fake", Price: decimal.NewFromInt(p), Currency: "USD"})
	}
	return offers
}

func (p *fakeProvider) Search(_ context.Context, req model.SearchRequest) ([]model.Offer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return p.offers, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type sentAlert struct {
	alertID string
	price   decimal.Decimal
	offer   model.Offer
}

type fakeDispatcher struct {
	mu     sync.Mutex
	result notify.Result
	sent   []sentAlert
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{result: notify.Result{Success: true, Message: "sent"}}
}

func (d *fakeDispatcher) SendPriceAlert(_ context.Context, alert *model.PriceAlert, price decimal.Decimal, offer model.Offer) notify.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentAlert{alertID: alert.ID, price: price, offer: offer})
	return d.result
}

func (d *fakeDispatcher) calls() []sentAlert {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentAlert(nil), d.sent...)
}

func newAlert(id string, freq model.Frequency, target int64, lastChecked *time.Time) *model.PriceAlert {
	return &model.PriceAlert{
		ID:          id,
		Email:       id + "@example.com",
		Route:       model.Route{From: "LHR", To: "JFK", DepartureDate: "2026-12-01"},
		TargetPrice: decimal.NewFromInt(target),
		Currency:    "USD",
		TravelClass: model.ClassEconomy,
		Passengers:  model.Passengers{Adults: 1},
		Frequency:   freq,
		Active:      true,
		LastChecked: lastChecked,
		CreatedAt:   baseTime.Add(-72 * time.Hour),
		UpdatedAt:   baseTime.Add(-72 * time.Hour),
	}
}

func ago(d time.Duration) *time.Time {
	t := baseTime.Add(-d)
	return &t
}
