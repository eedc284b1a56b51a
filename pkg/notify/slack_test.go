package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAlert() *model.PriceAlert {
	return &model.PriceAlert{
		ID:          "alert-1",
		Email:       "traveller@example.com",
		Route:       model.Route{From: "LHR", To: "JFK", DepartureDate: "2026-12-01", ReturnDate: "2026-12-10"},
		TargetPrice: decimal.NewFromInt(300),
		Currency:    "USD",
		TravelClass: model.ClassEconomy,
		Passengers:  model.Passengers{Adults: 1},
		Frequency:   model.FrequencyDaily,
		Active:      true,
	}
}

func sampleNotification() notify.PriceNotification {
	offer := model.Offer{ID: "o-1", Provider: "static", Price: decimal.NewFromInt(280), Airline: "BA", BookingLink: "https://example.com/book"}
	return notify.NewPriceNotification(sampleAlert(), decimal.NewFromInt(280), offer, time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))
}

func TestSlackNotifier_Name(t *testing.T) {
	n := notify.NewSlackNotifier("https://hooks.slack.com/test", "#test")
	assert.Equal(t, "slack", n.Name())
}

func TestSlackNotifier_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, http.MethodPost, r.Method)

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := notify.NewSlackNotifier(server.URL, "#fares")
	err := n.Send(context.Background(), sampleNotification())
	require.NoError(t, err)
	assert.Equal(t, "#fares", received["channel"])

	attachments, ok := received["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	first := attachments[0].(map[string]any)
	assert.Equal(t, "https://example.com/book", first["title_link"])
	assert.Contains(t, first["text"], "280.00 USD")
}

func TestSlackNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := notify.NewSlackNotifier(server.URL, "#test")
	err := n.Send(context.Background(), sampleNotification())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestPriceNotification(t *testing.T) {
	n := sampleNotification()
	assert.Equal(t, "alert-1", n.AlertID)
	assert.Equal(t, "LHR → JFK (2026-12-01 / 2026-12-10)", n.RouteLabel())
	assert.True(t, n.Savings().Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "LHR → JFK (2026-12-01 / 2026-12-10) is now 280.00 USD (target 300.00 USD)", n.Message)
}

func TestPriceNotification_OneWay(t *testing.T) {
	alert := sampleAlert()
	alert.Route.ReturnDate = ""
	n := notify.NewPriceNotification(alert, decimal.NewFromInt(250), model.Offer{}, time.Now())
	assert.Equal(t, "LHR → JFK (2026-12-01)", n.RouteLabel())
}
