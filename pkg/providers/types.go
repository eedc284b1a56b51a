package providers

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
)

// ErrProvider marks a failed price lookup. Callers treat it as transient.
var ErrProvider = errors.New("price provider error")

// PriceProvider prices a flight search.
type PriceProvider interface {
	// Name returns the provider identifier (e.g., "amadeus", "static").
	Name() string

	// Search returns every offer found for the request. An empty result is not an error.
	Search(ctx context.Context, req model.SearchRequest) ([]model.Offer, error)
}
