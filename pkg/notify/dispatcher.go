package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/internal/metrics"
	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/shopspring/decimal"
)

// Result reports the outcome of a price alert dispatch.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Dispatcher fans a price alert out to every registered notifier.
type Dispatcher struct {
	mu        sync.RWMutex
	notifiers []Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher over the given notifiers.
func NewDispatcher(logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
		now:       time.Now,
	}
}

// Register adds a notifier.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
}

// Names returns the registered notifier names in registration order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// SendPriceAlert notifies every channel about a triggered alert.
// Success is true only when every channel accepted the notification.
// Individual channel failures are logged and never stop the remaining channels.
func (d *Dispatcher) SendPriceAlert(ctx context.Context, alert *model.PriceAlert, price decimal.Decimal, offer model.Offer) Result {
	d.mu.RLock()
	notifiers := make([]Notifier, len(d.notifiers))
	copy(notifiers, d.notifiers)
	d.mu.RUnlock()

	if len(notifiers) == 0 {
		return Result{Success: false, Message: "no notifiers configured"}
	}

	n := NewPriceNotification(alert, price, offer, d.now())

	var failed []string
	for _, notifier := range notifiers {
		err := notifier.Send(ctx, n)
		metrics.NotificationsTotal.WithLabelValues(notifier.Name(), metrics.Result(err)).Inc()
		if err != nil {
			d.logger.Error("failed to send price alert",
				"notifier", notifier.Name(),
				"alert_id", alert.ID,
				"error", err,
			)
			failed = append(failed, fmt.Sprintf("%s: %v", notifier.Name(), err))
			continue
		}
		d.logger.Info("price alert sent",
			"notifier", notifier.Name(),
			"alert_id", alert.ID,
			"price", price.String(),
		)
	}

	if len(failed) > 0 {
		return Result{
			Success: false,
			Message: fmt.Sprintf("%d of %d channels failed: %s", len(failed), len(notifiers), strings.Join(failed, "; ")),
		}
	}
	return Result{Success: true, Message: fmt.Sprintf("sent via %d channel(s)", len(notifiers))}
}
