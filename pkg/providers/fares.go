package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FareEntry is one fixed fare in a fares file.
type FareEntry struct {
	Airline string `yaml:"airline"`
	Price   string `yaml:"price"`
	Stops   int    `yaml:"stops"`
}

// FaresConfig holds YAML-loaded fares keyed by FROM-TO route.
type FaresConfig struct {
	Provider string                 `yaml:"provider"`
	Currency string                 `yaml:"currency"`
	Updated  string                 `yaml:"updated"`
	Routes   map[string][]FareEntry `yaml:"routes"`
}

// LoadFares reads a YAML fares file.
func LoadFares(path string) (*FaresConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fares file %s: %w", path, err)
	}

	cfg, err := LoadFaresFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("fares file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFaresFromBytes parses and validates YAML fares data.
func LoadFaresFromBytes(data []byte) (*FaresConfig, error) {
	var cfg FaresConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse fares data: %w", err)
	}
	if cfg.Provider == "" {
		cfg.Provider = "static"
	}
	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("no routes defined")
	}
	for route, fares := range cfg.Routes {
		for i, f := range fares {
			price, err := decimal.NewFromString(f.Price)
			if err != nil {
				return nil, fmt.Errorf("route %s fare %d: invalid price %q", route, i, f.Price)
			}
			if !price.IsPositive() {
				return nil, fmt.Errorf("route %s fare %d: price must be positive, got %s", route, i, f.Price)
			}
		}
	}
	return &cfg, nil
}

// Static serves fixed fares from a fares file. It is meant for local runs and demos.
type Static struct {
	config *FaresConfig
	routes map[string][]model.Offer
}

// NewStatic creates a static provider from loaded fares.
func NewStatic(cfg *FaresConfig) *Static {
	routes := make(map[string][]model.Offer, len(cfg.Routes))
	for key, fares := range cfg.Routes {
		key = strings.ToUpper(strings.TrimSpace(key))
		for i, f := range fares {
			routes[key] = append(routes[key], model.Offer{
				ID:       fmt.Sprintf("%s-%d", key, i+1),
				Provider: cfg.Provider,
				Price:    decimal.RequireFromString(f.Price),
				Currency: cfg.Currency,
				Airline:  f.Airline,
				Stops:    f.Stops,
			})
		}
	}
	return &Static{config: cfg, routes: routes}
}

// NewStaticFromFile creates a static provider from a YAML fares file.
func NewStaticFromFile(path string) (*Static, error) {
	cfg, err := LoadFares(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(cfg), nil
}

func (s *Static) Name() string { return s.config.Provider }

func (s *Static) Search(_ context.Context, req model.SearchRequest) ([]model.Offer, error) {
	offers := s.routes[req.Route.Key()]
	out := make([]model.Offer, len(offers))
	copy(out, offers)
	for i := range out {
		out[i].DepartureAt = req.Route.DepartureDate
		out[i].ReturnAt = req.Route.ReturnDate
		if out[i].Currency == "" {
			out[i].Currency = req.Currency
		}
	}
	return out, nil
}
