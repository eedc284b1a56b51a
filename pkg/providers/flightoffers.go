package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// FlightOffersConfig configures the flight-offers search client.
type FlightOffersConfig struct {
	Name         string
	BaseURL      string
	ClientID     string
	ClientSecret string
	MaxResults   int
	Timeout      time.Duration

	// RequestsPerSecond caps outbound search calls. Zero means unlimited.
	RequestsPerSecond float64
}

// FlightOffers prices routes through a flight-offers search API
// (OAuth2 client credentials + GET /v2/shopping/flight-offers).
type FlightOffers struct {
	cfg     FlightOffersConfig
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewFlightOffers creates a flight-offers client.
func NewFlightOffers(cfg FlightOffersConfig) *FlightOffers {
	if cfg.Name == "" {
		cfg.Name = "amadeus"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &FlightOffers{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		now:     time.Now,
	}
}

func (f *FlightOffers) Name() string { return f.cfg.Name }

func (f *FlightOffers) Search(ctx context.Context, req model.SearchRequest) ([]model.Offer, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limit: %w", err)
	}

	token, err := f.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("originLocationCode", strings.ToUpper(req.Route.From))
	q.Set("destinationLocationCode", strings.ToUpper(req.Route.To))
	q.Set("departureDate", req.Route.DepartureDate)
	if req.Route.ReturnDate != "" {
		q.Set("returnDate", req.Route.ReturnDate)
	}
	adults := req.Passengers.Adults
	if adults < 1 {
		adults = 1
	}
	q.Set("adults", strconv.Itoa(adults))
	if req.Passengers.Children > 0 {
		q.Set("children", strconv.Itoa(req.Passengers.Children))
	}
	if req.Passengers.Infants > 0 {
		q.Set("infants", strconv.Itoa(req.Passengers.Infants))
	}
	if req.TravelClass != "" {
		q.Set("travelClass", string(req.TravelClass))
	}
	if req.Currency != "" {
		q.Set("currencyCode", req.Currency)
	}
	q.Set("max", strconv.Itoa(f.cfg.MaxResults))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.cfg.BaseURL+"/v2/shopping/flight-offers?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search flight offers: %w: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		f.resetToken()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("flight offers returned status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), ErrProvider)
	}

	var payload offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode flight offers: %w: %w", ErrProvider, err)
	}

	offers := make([]model.Offer, 0, len(payload.Data))
	for _, d := range payload.Data {
		o := d.toOffer(f.cfg.Name, req.Currency)
		if !o.Priced() {
			continue
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// accessToken returns a cached bearer token, fetching a new one when it is missing or expired.
// No credentials means the API is called unauthenticated.
func (f *FlightOffers) accessToken(ctx context.Context) (string, error) {
	if f.cfg.ClientID == "" {
		return "", nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.token != "" && f.now().Before(f.expiresAt) {
		return f.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", f.cfg.ClientID)
	form.Set("client_secret", f.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.cfg.BaseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %w", resp.StatusCode, ErrProvider)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode access token: %w: %w", ErrProvider, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token: %w", ErrProvider)
	}

	// Tokens are refreshed 30s before the server-side expiry.
	ttl := time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second
	if ttl < 0 {
		ttl = 0
	}
	f.token = tok.AccessToken
	f.expiresAt = f.now().Add(ttl)
	return f.token, nil
}

func (f *FlightOffers) resetToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.expiresAt = time.Time{}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type offersResponse struct {
	Data []offerData `json:"data"`
}

type offerData struct {
	ID          string `json:"id"`
	Itineraries []struct {
		Segments []struct {
			CarrierCode string `json:"carrierCode"`
			Departure   struct {
				At string `json:"at"`
			} `json:"departure"`
		} `json:"segments"`
	} `json:"itineraries"`
	Price struct {
		Currency   string          `json:"currency"`
		Total      decimal.Decimal `json:"total"`
		GrandTotal decimal.Decimal `json:"grandTotal"`
	} `json:"price"`
	ValidatingAirlineCodes []string `json:"validatingAirlineCodes"`
}

func (d offerData) toOffer(provider, currency string) model.Offer {
	o := model.Offer{
		ID:       d.ID,
		Provider: provider,
		Price:    d.Price.GrandTotal,
		Currency: d.Price.Currency,
	}
	if o.Price.IsZero() {
		o.Price = d.Price.Total
	}
	if o.Currency == "" {
		o.Currency = currency
	}
	if len(d.ValidatingAirlineCodes) > 0 {
		o.Airline = d.ValidatingAirlineCodes[0]
	}
	if len(d.Itineraries) > 0 {
		out := d.Itineraries[0]
		if len(out.Segments) > 0 {
			o.DepartureAt = out.Segments[0].Departure.At
			if o.Airline == "" {
				o.Airline = out.Segments[0].CarrierCode
			}
			o.Stops = len(out.Segments) - 1
		}
	}
	if len(d.Itineraries) > 1 && len(d.Itineraries[1].Segments) > 0 {
		o.ReturnAt = d.Itineraries[1].Segments[0].Departure.At
	}
	return o
}
