package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
)

// ErrAlertNotFound is returned when an alert does not exist or is not in the state a write requires.
var ErrAlertNotFound = errors.New("alert not found")

// ErrStaleObservation is returned when an observation is older than the alert's last check.
var ErrStaleObservation = errors.New("observation older than last check")

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	ActiveOnly bool
	Email      string
}

// Storage defines the persistence layer for price alerts.
type Storage interface {
	// CreateAlert persists a new alert, assigning an ID if missing.
	CreateAlert(ctx context.Context, alert *model.PriceAlert) error

	// GetAlert retrieves an alert by ID.
	GetAlert(ctx context.Context, id string) (*model.PriceAlert, error)

	// ListAlerts returns alerts matching the filter, oldest first.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]model.PriceAlert, error)

	// QueryActiveAlerts returns every alert with active = true, oldest first.
	QueryActiveAlerts(ctx context.Context) ([]model.PriceAlert, error)

	// UpdateObservation writes the result of a successful price lookup to an active alert.
	// lastChecked never moves backwards: an older observation fails with ErrStaleObservation.
	UpdateObservation(ctx context.Context, id string, obs model.Observation) error

	// Deactivate marks an active alert as triggered. It succeeds at most once per activation.
	Deactivate(ctx context.Context, id string, triggeredAt time.Time) error

	// Reactivate turns a triggered alert back on.
	Reactivate(ctx context.Context, id string) error

	// DeleteAlert removes an alert.
	DeleteAlert(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
