package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/internal/metrics"
)

// ErrScanInProgress is returned by TriggerNow while another scan is running.
var ErrScanInProgress = errors.New("scan already in progress")

// Scanner runs one scan.
type Scanner interface {
	Run(ctx context.Context) (ScanSummary, error)
}

// Scheduler runs scans on a fixed cadence and on demand, never two at once.
type Scheduler struct {
	scanner    Scanner
	runOnStart bool
	logger     *slog.Logger

	running atomic.Bool
	last    atomic.Pointer[ScanSummary]

	mu     sync.Mutex
	stop   chan struct{}
	loopWG sync.WaitGroup
	scanWG sync.WaitGroup
}

// NewScheduler creates a scheduler. With runOnStart set, Start also kicks off an immediate scan.
func NewScheduler(scanner Scanner, runOnStart bool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scanner:    scanner,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

// Start schedules a scan every interval until Stop is called or ctx is done.
// Scans themselves are not cancelled by either; use Wait to let them finish.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid scan interval %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return errors.New("scheduler already started")
	}
	s.stop = make(chan struct{})

	s.loopWG.Add(1)
	go s.loop(ctx, interval, s.stop)

	s.logger.Info("scheduler started", "interval", interval, "run_on_start", s.runOnStart)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, stop <-chan struct{}) {
	defer s.loopWG.Done()

	if s.runOnStart {
		s.launch(ctx, "startup")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.launch(ctx, "tick")
		}
	}
}

// launch starts a background scan unless one is already running.
func (s *Scheduler) launch(ctx context.Context, trigger string) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.ScanTicksSkipped.Inc()
		s.logger.Warn("scan already in progress, skipping", "trigger", trigger)
		return
	}

	s.scanWG.Add(1)
	go func() {
		defer s.scanWG.Done()
		s.execute(ctx, trigger)
	}()
}

// TriggerNow runs a scan synchronously. It returns ErrScanInProgress rather
// than waiting if a scan is already running.
func (s *Scheduler) TriggerNow(ctx context.Context) (ScanSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return ScanSummary{}, ErrScanInProgress
	}
	s.scanWG.Add(1)
	defer s.scanWG.Done()
	return s.execute(ctx, "manual")
}

// execute runs the scan with the single-flight flag already held and releases it.
func (s *Scheduler) execute(ctx context.Context, trigger string) (summary ScanSummary, err error) {
	defer s.running.Store(false)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scan panicked: %v", p)
			s.logger.Error("scan panicked", "trigger", trigger, "panic", p)
		}
	}()

	metrics.ScanInProgress.Set(1)
	defer metrics.ScanInProgress.Set(0)

	s.logger.Debug("scan triggered", "trigger", trigger)
	summary, err = s.scanner.Run(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Error("scan failed", "trigger", trigger, "error", err)
	}
	s.last.Store(&summary)
	return summary, err
}

// Stop cancels future ticks. A scan already running is left to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	s.stop = nil
	s.mu.Unlock()

	s.loopWG.Wait()
	s.logger.Info("scheduler stopped")
}

// Wait blocks until no scan is running or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.scanWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for in-flight scan: %w", ctx.Err())
	}
}

// Running reports whether a scan is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// LastScan returns the summary of the most recently finished scan.
func (s *Scheduler) LastScan() (ScanSummary, bool) {
	last := s.last.Load()
	if last == nil {
		return ScanSummary{}, false
	}
	return *last, true
}
