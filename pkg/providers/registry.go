package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ogulcanaydogan/fare-guardian/internal/metrics"
	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
)

// Registry holds named providers and searches all of them as one PriceProvider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]PriceProvider
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]PriceProvider),
		logger:    logger,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p PriceProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (PriceProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return p, nil
}

// List returns all registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name identifies the registry when it is used as a provider.
func (r *Registry) Name() string { return "registry" }

// Search queries each registered provider in name order and merges the offers.
// It fails only when every provider fails; partial failures are logged.
func (r *Registry) Search(ctx context.Context, req model.SearchRequest) ([]model.Offer, error) {
	names := r.List()
	if len(names) == 0 {
		return nil, fmt.Errorf("no providers registered: %w", ErrProvider)
	}

	var offers []model.Offer
	var errs []error
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		found, err := p.Search(ctx, req)
		metrics.ProviderRequestsTotal.WithLabelValues(name, metrics.Result(err)).Inc()
		if err != nil {
			r.logger.Warn("provider search failed",
				"provider", name,
				"route", req.Route.Key(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		offers = append(offers, found...)
	}

	if len(errs) == len(names) {
		return nil, fmt.Errorf("all providers failed: %w", errors.Join(append(errs, ErrProvider)...))
	}
	return offers, nil
}
