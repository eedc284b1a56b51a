package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
)

const (
	webhookEvent = "price_alert"

	// HeaderDeliveryID carries DeliveryID so receivers can drop repeated deliveries.
	HeaderDeliveryID = "X-Idempotency-Key"
	// HeaderSignature carries the hex HMAC-SHA256 of the body when a secret is set.
	HeaderSignature = "X-Signature-256"
	HeaderEvent     = "X-Fare-Guardian-Event"
)

// WebhookNotifier posts triggered price alerts to an HTTP endpoint as JSON.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
// If secret is non-empty, each body is signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// DeliveryID identifies one firing of an alert. It is stable for the same
// alert and trigger time, so a retried delivery carries the same id.
func DeliveryID(n PriceNotification) string {
	sum := sha256.Sum256([]byte(n.AlertID + "|" + n.TriggeredAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:16])
}

func (w *WebhookNotifier) Send(ctx context.Context, n PriceNotification) error {
	payload := newFareEvent(n)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", webhookEvent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Fare-Guardian/1.0")
	req.Header.Set(HeaderEvent, webhookEvent)
	req.Header.Set(HeaderDeliveryID, payload.DeliveryID)
	if w.secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+sign(body, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert %s to webhook: %w", n.AlertID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected alert %s (delivery %s): status %d", n.AlertID, payload.DeliveryID, resp.StatusCode)
	}
	return nil
}

// fareEvent is the webhook body for a triggered alert.
type fareEvent struct {
	Event       string      `json:"event"`
	DeliveryID  string      `json:"delivery_id"`
	TriggeredAt string      `json:"triggered_at"`
	AlertID     string      `json:"alert_id"`
	Email       string      `json:"email,omitempty"`
	Route       model.Route `json:"route"`
	Class       string      `json:"travel_class"`
	Currency    string      `json:"currency"`
	Target      string      `json:"target_price"`
	Price       string      `json:"price"`
	Savings     string      `json:"savings"`
	Offer       fareOffer   `json:"offer"`
	Message     string      `json:"message"`
}

type fareOffer struct {
	Provider    string `json:"provider"`
	Airline     string `json:"airline,omitempty"`
	Stops       int    `json:"stops"`
	DepartureAt string `json:"departure_at,omitempty"`
	ReturnAt    string `json:"return_at,omitempty"`
	BookingLink string `json:"booking_link,omitempty"`
}

// newFareEvent flattens a notification. Money is rendered with two decimals.
func newFareEvent(n PriceNotification) fareEvent {
	return fareEvent{
		Event:       webhookEvent,
		DeliveryID:  DeliveryID(n),
		TriggeredAt: n.TriggeredAt.UTC().Format(time.RFC3339),
		AlertID:     n.AlertID,
		Email:       n.Email,
		Route:       n.Route,
		Class:       string(n.TravelClass),
		Currency:    n.Currency,
		Target:      n.TargetPrice.StringFixed(2),
		Price:       n.CurrentPrice.StringFixed(2),
		Savings:     n.Savings().StringFixed(2),
		Offer: fareOffer{
			Provider:    n.Offer.Provider,
			Airline:     n.Offer.Airline,
			Stops:       n.Offer.Stops,
			DepartureAt: n.Offer.DepartureAt,
			ReturnAt:    n.Offer.ReturnAt,
			BookingLink: n.Offer.BookingLink,
		},
		Message: n.Message,
	}
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
