package monitor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/monitor"
	"github.com/ogulcanaydogan/fare-guardian/pkg/notify"
	"github.com/ogulcanaydogan/fare-guardian/pkg/providers"
	"github.com/ogulcanaydogan/fare-guardian/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const integrationFares = `
provider: fixture
currency: USD
routes:
  LHR-JFK:
    - airline: BA
      price: "320.00"
    - airline: VS
      price: "280.00"
  AMS-BCN:
    - airline: KL
      price: "450.00"
`

func TestScan_SQLiteStaticWebhook(t *testing.T) {
	ctx := context.Background()

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fares, err := providers.LoadFaresFromBytes([]byte(integrationFares))
	require.NoError(t, err)
	registry := providers.NewRegistry(testLogger())
	require.NoError(t, registry.Register(providers.NewStatic(fares)))

	var mu sync.Mutex
	var events []map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		events = append(events, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(hook.Close)
	dispatcher := notify.NewDispatcher(testLogger(), notify.NewWebhookNotifier(hook.URL, "secret"))

	cheap := &model.PriceAlert{
		Email:       "a@example.com",
		Route:       model.Route{From: "LHR", To: "JFK", DepartureDate: "2026-12-01"},
		TargetPrice: decimal.NewFromInt(300),
		Frequency:   model.FrequencyDaily,
		Active:      true,
		LastChecked: ago(25 * time.Hour),
	}
	pricey := &model.PriceAlert{
		Email:       "b@example.com",
		Route:       model.Route{From: "AMS", To: "BCN", DepartureDate: "2026-11-20"},
		TargetPrice: decimal.NewFromInt(300),
		Frequency:   model.FrequencyDaily,
		Active:      true,
		LastChecked: ago(25 * time.Hour),
	}
	require.NoError(t, store.CreateAlert(ctx, cheap))
	require.NoError(t, store.CreateAlert(ctx, pricey))

	clock := newFakeClock(baseTime)
	ev := monitor.NewEvaluator(store, registry, dispatcher, clock, 30, testLogger())
	runner := monitor.NewScanRunner(store, monitor.NewFrequencyGate(monitor.DefaultThresholds()), ev, monitor.RunnerOptions{
		Pacing: time.Second,
		Clock:  clock,
		Sleep:  func(context.Context, time.Duration) error { return nil },
		Logger: testLogger(),
	})
	scheduler := monitor.NewScheduler(runner, false, testLogger())

	summary, err := scheduler.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Triggered)
	assert.Equal(t, 1, summary.Updated)

	got, err := store.GetAlert(ctx, cheap.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.TriggeredAt)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(280)))
	require.Len(t, got.PriceHistory, 1)

	got, err = store.GetAlert(ctx, pricey.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, baseTime, got.LastChecked.UTC())

	mu.Lock()
	require.Len(t, events, 1)
	assert.Equal(t, "price_alert", events[0]["event"])
	mu.Unlock()

	// Nothing is due a minute later, and the triggered alert is gone from the active set.
	clock.Advance(time.Minute)
	summary, err = scheduler.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Active)
	assert.Equal(t, 0, summary.Checked)
}
