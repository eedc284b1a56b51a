package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/internal/metrics"
	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
)

// ErrStoreUnavailable is returned when the active alert set cannot be loaded.
var ErrStoreUnavailable = errors.New("alert store unavailable")

// DefaultPacing is the delay between consecutive alert checks.
const DefaultPacing = time.Second

// ScanSummary reports one pass over the active alerts.
type ScanSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Active    int           `json:"active"`
	Due       int           `json:"due"`
	Checked   int           `json:"checked"`
	Updated   int           `json:"updated"`
	Triggered int           `json:"triggered"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
}

// RunnerOptions tunes a ScanRunner. A zero Pacing disables the delay between
// alerts; other zero values use the defaults.
type RunnerOptions struct {
	Pacing time.Duration
	Clock  Clock
	Sleep  Sleeper
	Logger *slog.Logger
}

// ScanRunner checks every due, active alert one at a time.
type ScanRunner struct {
	store   AlertStore
	gate    *FrequencyGate
	checker AlertChecker
	pacing  time.Duration
	clock   Clock
	sleep   Sleeper
	logger  *slog.Logger
}

// NewScanRunner creates a scan runner.
func NewScanRunner(store AlertStore, gate *FrequencyGate, checker AlertChecker, opts RunnerOptions) *ScanRunner {
	if opts.Pacing < 0 {
		opts.Pacing = 0
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if gate == nil {
		gate = NewFrequencyGate(DefaultThresholds())
	}
	return &ScanRunner{
		store:   store,
		gate:    gate,
		checker: checker,
		pacing:  opts.Pacing,
		clock:   opts.Clock,
		sleep:   opts.Sleep,
		logger:  opts.Logger,
	}
}

// Run performs one scan. Per-alert failures are logged and counted in the
// summary; only a failure to load the active alerts fails the scan.
func (r *ScanRunner) Run(ctx context.Context) (ScanSummary, error) {
	start := r.clock.Now()
	summary := ScanSummary{StartedAt: start}

	alerts, err := r.store.QueryActiveAlerts(ctx)
	if err != nil {
		summary.Duration = r.clock.Now().Sub(start)
		metrics.ScansTotal.WithLabelValues("failed").Inc()
		r.logger.Error("scan abandoned", "error", err)
		return summary, fmt.Errorf("query active alerts: %w: %w", ErrStoreUnavailable, err)
	}
	summary.Active = len(alerts)

	due := make([]*model.PriceAlert, 0, len(alerts))
	for i := range alerts {
		alert := &alerts[i]
		if !alert.Active {
			continue
		}
		if r.gate.IsDue(alert, start) {
			due = append(due, alert)
		}
	}
	summary.Due = len(due)

	r.logger.Info("scan started", "active", summary.Active, "due", summary.Due)

	var runErr error
	for i, alert := range due {
		if i > 0 && r.pacing > 0 {
			if err := r.sleep(ctx, r.pacing); err != nil {
				runErr = fmt.Errorf("scan interrupted: %w", err)
				break
			}
		}

		summary.Checked++
		outcome, err := r.checkOne(ctx, alert)
		if err != nil {
			summary.Errors++
			metrics.AlertEvaluationsTotal.WithLabelValues("error").Inc()
			r.logger.Error("alert check failed", "alert_id", alert.ID, "error", err)
			continue
		}
		metrics.AlertEvaluationsTotal.WithLabelValues(string(outcome.Status)).Inc()

		switch outcome.Status {
		case StatusUpdated:
			summary.Updated++
		case StatusTriggered:
			summary.Triggered++
		case StatusSkipped:
			summary.Skipped++
		}
	}

	summary.Duration = r.clock.Now().Sub(start)
	metrics.ScanDuration.Observe(summary.Duration.Seconds())
	result := "ok"
	if runErr != nil {
		result = "interrupted"
	}
	metrics.ScansTotal.WithLabelValues(result).Inc()

	r.logger.Info("scan completed",
		"checked", summary.Checked,
		"updated", summary.Updated,
		"triggered", summary.Triggered,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"duration", summary.Duration,
	)
	return summary, runErr
}

// checkOne isolates a single evaluation, turning a panic into an error.
func (r *ScanRunner) checkOne(ctx context.Context, alert *model.PriceAlert) (outcome Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic checking alert %s: %v", alert.ID, p)
		}
	}()
	return r.checker.Check(ctx, alert)
}
