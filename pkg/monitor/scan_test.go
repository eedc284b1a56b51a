package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return s.err
}

// scriptedChecker returns per-alert results and records evaluation order.
type scriptedChecker struct {
	mu     sync.Mutex
	order  []string
	errs   map[string]error
	panics map[string]bool
}

func (c *scriptedChecker) Check(_ context.Context, alert *model.PriceAlert) (monitor.Outcome, error) {
	c.mu.Lock()
	c.order = append(c.order, alert.ID)
	c.mu.Unlock()
	if c.panics[alert.ID] {
		panic("boom")
	}
	if err := c.errs[alert.ID]; err != nil {
		return monitor.Outcome{}, err
	}
	return monitor.Outcome{Status: monitor.StatusUpdated}, nil
}

type scanFixture struct {
	store      *fakeStore
	provider   *fakeProvider
	dispatcher *fakeDispatcher
	clock      *fakeClock
	sleeper    *recordingSleeper
	runner     *monitor.ScanRunner
}

func newScanFixture(offers []model.Offer, alerts ...*model.PriceAlert) *scanFixture {
	f := &scanFixture{
		store:      newFakeStore(alerts...),
		provider:   &fakeProvider{offers: offers},
		dispatcher: newFakeDispatcher(),
		clock:      newFakeClock(baseTime),
		sleeper:    &recordingSleeper{},
	}
	ev := monitor.NewEvaluator(f.store, f.provider, f.dispatcher, f.clock, 30, testLogger())
	f.runner = monitor.NewScanRunner(f.store, monitor.NewFrequencyGate(monitor.DefaultThresholds()), ev, monitor.RunnerOptions{
		Pacing: time.Second,
		Clock:  f.clock,
		Sleep:  f.sleeper.Sleep,
		Logger: testLogger(),
	})
	return f
}

func TestScanRunner_EndToEnd_Trigger(t *testing.T) {
	f := newScanFixture(offersAt(280, 320), newAlert("a1", model.FrequencyDaily, 300, ago(25*time.Hour)))

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Triggered)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Errors)

	stored := f.store.get("a1")
	assert.False(t, stored.Active)
	require.Len(t, stored.PriceHistory, 1)
	assert.Equal(t, baseTime, stored.PriceHistory[0].Timestamp)
	sent := f.dispatcher.calls()
	require.Len(t, sent, 1)
	assert.Equal(t, "280", sent[0].price.String())
}

func TestScanRunner_EndToEnd_UpdateOnly(t *testing.T) {
	f := newScanFixture(offersAt(450), newAlert("a1", model.FrequencyDaily, 300, ago(25*time.Hour)))

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Triggered)

	stored := f.store.get("a1")
	assert.True(t, stored.Active)
	assert.Equal(t, "450", stored.CurrentPrice.String())
	assert.Equal(t, baseTime, *stored.LastChecked)
	assert.Empty(t, f.dispatcher.calls())
}

func TestScanRunner_OnlyDueAlerts(t *testing.T) {
	f := newScanFixture(offersAt(450),
		newAlert("due", model.FrequencyHourly, 300, ago(2*time.Hour)),
		newAlert("fresh", model.FrequencyDaily, 300, ago(time.Hour)),
		newAlert("new", model.FrequencyWeekly, 300, nil),
	)

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Active)
	assert.Equal(t, 2, summary.Due)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 2, f.provider.calls())
	assert.Equal(t, *ago(time.Hour), *f.store.get("fresh").LastChecked)
}

func TestScanRunner_TriggeredAlertNeverReevaluated(t *testing.T) {
	f := newScanFixture(offersAt(200), newAlert("a1", model.FrequencyHourly, 300, nil))

	first, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Triggered)

	f.clock.Advance(48 * time.Hour)
	second, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Checked)
	assert.Equal(t, 1, f.provider.calls())
	assert.Len(t, f.dispatcher.calls(), 1)
}

func TestScanRunner_SkipsInactiveEvenIfReturned(t *testing.T) {
	inactive := newAlert("off", model.FrequencyHourly, 300, nil)
	inactive.Active = false
	checker := &scriptedChecker{}
	store := &staticStore{alerts: []model.PriceAlert{*inactive, *newAlert("on", model.FrequencyHourly, 300, nil)}}
	runner := monitor.NewScanRunner(store, nil, checker, monitor.RunnerOptions{Clock: newFakeClock(baseTime), Logger: testLogger()})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, checker.order)
	assert.Equal(t, 1, summary.Checked)
}

func TestScanRunner_PacingBetweenAlerts(t *testing.T) {
	f := newScanFixture(offersAt(450),
		newAlert("a1", model.FrequencyDaily, 300, nil),
		newAlert("a2", model.FrequencyDaily, 300, nil),
		newAlert("a3", model.FrequencyDaily, 300, nil),
	)

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, f.sleeper.waits)
}

func TestScanRunner_NoPacingForSingleAlert(t *testing.T) {
	f := newScanFixture(offersAt(450), newAlert("a1", model.FrequencyDaily, 300, nil))

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.sleeper.waits)
}

func TestScanRunner_StoreUnavailable(t *testing.T) {
	f := newScanFixture(offersAt(450), newAlert("a1", model.FrequencyDaily, 300, nil))
	f.store.queryErr = errors.New("connection refused")

	summary, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, monitor.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, summary.Checked)
	assert.Equal(t, 0, f.provider.calls())
}

func TestScanRunner_IsolatesPerAlertFailures(t *testing.T) {
	alerts := []model.PriceAlert{
		*newAlert("a1", model.FrequencyDaily, 300, nil),
		*newAlert("a2", model.FrequencyDaily, 300, nil),
		*newAlert("a3", model.FrequencyDaily, 300, nil),
		*newAlert("a4", model.FrequencyDaily, 300, nil),
	}
	checker := &scriptedChecker{
		errs:   map[string]error{"a2": errors.New("write failed")},
		panics: map[string]bool{"a3": true},
	}
	runner := monitor.NewScanRunner(&staticStore{alerts: alerts}, nil, checker, monitor.RunnerOptions{
		Clock:  newFakeClock(baseTime),
		Sleep:  (&recordingSleeper{}).Sleep,
		Logger: testLogger(),
	})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4"}, checker.order)
	assert.Equal(t, 4, summary.Checked)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 2, summary.Errors)
}

func TestScanRunner_ProviderErrorsAreSkips(t *testing.T) {
	f := newScanFixture(nil,
		newAlert("a1", model.FrequencyDaily, 300, nil),
		newAlert("a2", model.FrequencyDaily, 300, nil),
	)
	f.provider.err = errors.New("503")

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Errors)
	assert.Nil(t, f.store.get("a1").LastChecked)
}

func TestScanRunner_NoOffersRetriedNextScan(t *testing.T) {
	f := newScanFixture([]model.Offer{}, newAlert("a1", model.FrequencyWeekly, 300, nil))

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.provider.calls(), "empty results do not mark the alert fresh")
}

func TestScanRunner_InterruptedDuringPacing(t *testing.T) {
	f := newScanFixture(offersAt(450),
		newAlert("a1", model.FrequencyDaily, 300, nil),
		newAlert("a2", model.FrequencyDaily, 300, nil),
	)
	f.sleeper.err = context.Canceled

	summary, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Checked)
}

// staticStore serves a fixed alert list, including inactive ones.
type staticStore struct {
	alerts []model.PriceAlert
}

func (s *staticStore) QueryActiveAlerts(_ context.Context) ([]model.PriceAlert, error) {
	return append([]model.PriceAlert(nil), s.alerts...), nil
}

func (s *staticStore) UpdateObservation(context.Context, string, model.Observation) error { return nil }

func (s *staticStore) Deactivate(context.Context, string, time.Time) error { return nil }
