package notify_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	header http.Header
	body   []byte
}

func newHookServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = append(got, capturedRequest{header: r.Header.Clone(), body: body})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestWebhookNotifier_Name(t *testing.T) {
	n := notify.NewWebhookNotifier("https://example.com/webhook", "")
	assert.Equal(t, "webhook", n.Name())
}

func TestWebhookNotifier_Send(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)

	n := notify.NewWebhookNotifier(srv.URL, "")
	require.NoError(t, n.Send(context.Background(), sampleNotification()))
	require.Len(t, *got, 1)

	req := (*got)[0]
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	assert.Equal(t, "Fare-Guardian/1.0", req.header.Get("User-Agent"))
	assert.Equal(t, "price_alert", req.header.Get("X-Fare-Guardian-Event"))

	var event map[string]any
	require.NoError(t, json.Unmarshal(req.body, &event))
	assert.Equal(t, "price_alert", event["event"])
	assert.Equal(t, "2026-10-16T09:00:00Z", event["triggered_at"])
	assert.Equal(t, "alert-1", event["alert_id"])
	assert.Equal(t, "USD", event["currency"])
	assert.Equal(t, "300.00", event["target_price"])
	assert.Equal(t, "280.00", event["price"])
	assert.Equal(t, "20.00", event["savings"])

	route, ok := event["route"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "LHR", route["from"])
	assert.Equal(t, "2026-12-10", route["return_date"])

	offer, ok := event["offer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "BA", offer["airline"])
	assert.Equal(t, "https://example.com/book", offer["booking_link"])
}

func TestWebhookNotifier_Send_DeliveryID(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)
	n := notify.NewWebhookNotifier(srv.URL, "")
	ctx := context.Background()

	first := sampleNotification()
	require.NoError(t, n.Send(ctx, first))
	require.NoError(t, n.Send(ctx, first))

	later := sampleNotification()
	later.TriggeredAt = later.TriggeredAt.Add(time.Hour)
	require.NoError(t, n.Send(ctx, later))

	require.Len(t, *got, 3)
	key := (*got)[0].header.Get("X-Idempotency-Key")
	assert.Len(t, key, 32)
	assert.Equal(t, notify.DeliveryID(first), key)
	assert.Equal(t, key, (*got)[1].header.Get("X-Idempotency-Key"), "a repeated delivery keeps its key")
	assert.NotEqual(t, key, (*got)[2].header.Get("X-Idempotency-Key"), "a new trigger gets a new key")

	var event map[string]any
	require.NoError(t, json.Unmarshal((*got)[0].body, &event))
	assert.Equal(t, key, event["delivery_id"])
}

func TestDeliveryID_DependsOnAlert(t *testing.T) {
	a := sampleNotification()
	b := sampleNotification()
	b.AlertID = "alert-2"
	assert.NotEqual(t, notify.DeliveryID(a), notify.DeliveryID(b))
}

func TestWebhookNotifier_Send_WithHMAC(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)

	n := notify.NewWebhookNotifier(srv.URL, "test-secret")
	require.NoError(t, n.Send(context.Background(), sampleNotification()))
	require.Len(t, *got, 1)

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write((*got)[0].body)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), (*got)[0].header.Get("X-Signature-256"))
}

func TestWebhookNotifier_Send_NoHMAC(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)

	n := notify.NewWebhookNotifier(srv.URL, "")
	require.NoError(t, n.Send(context.Background(), sampleNotification()))
	require.Len(t, *got, 1)
	assert.Empty(t, (*got)[0].header.Get("X-Signature-256"))
}

func TestWebhookNotifier_Send_ServerError(t *testing.T) {
	srv, _ := newHookServer(t, http.StatusServiceUnavailable)

	n := notify.NewWebhookNotifier(srv.URL, "")
	err := n.Send(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), notify.DeliveryID(sampleNotification()))
}
