package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier posts price alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, n PriceNotification) error {
	fields := []slackField{
		{Title: "Route", Value: n.RouteLabel(), Short: false},
		{Title: "Price", Value: fmt.Sprintf("%s %s", n.CurrentPrice.StringFixed(2), n.Currency), Short: true},
		{Title: "Target", Value: fmt.Sprintf("%s %s", n.TargetPrice.StringFixed(2), n.Currency), Short: true},
		{Title: "Below target by", Value: n.Savings().StringFixed(2), Short: true},
		{Title: "Class", Value: string(n.TravelClass), Short: true},
	}
	if n.Offer.Airline != "" {
		fields = append(fields, slackField{Title: "Airline", Value: n.Offer.Airline, Short: true})
	}
	if n.Offer.Provider != "" {
		fields = append(fields, slackField{Title: "Source", Value: n.Offer.Provider, Short: true})
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color:     "#36a64f",
				Title:     fmt.Sprintf("Fare Guardian: price drop %s-%s", n.Route.From, n.Route.To),
				TitleLink: n.Offer.BookingLink,
				Text:      n.Message,
				Fields:    fields,
				Footer:    "Fare Guardian",
				Ts:        n.TriggeredAt.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	TitleLink string       `json:"title_link,omitempty"`
	Text      string       `json:"text"`
	Fields    []slackField `json:"fields"`
	Footer    string       `json:"footer"`
	Ts        int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
