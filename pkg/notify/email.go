package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// EmailConfig holds SMTP configuration.
type EmailConfig struct {
	Host     string
	Port     int // 465 for implicit TLS, 587/25 for STARTTLS when offered
	Username string
	Password string
	From     string
	// Recipients are copied on every alert in addition to the alert owner.
	Recipients []string
}

// Validate validates the email configuration.
func (c *EmailConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if c.From == "" {
		return fmt.Errorf("from address is required")
	}
	return nil
}

// EmailNotifier emails the alert owner when their target price is reached.
type EmailNotifier struct {
	config EmailConfig
	body   *template.Template
}

// NewEmailNotifier creates an SMTP email notifier.
func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}

	tmpl, err := template.New("price_alert").Parse(emailTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	return &EmailNotifier{config: config, body: tmpl}, nil
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Send(ctx context.Context, n PriceNotification) error {
	recipients := e.recipients(n)
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients for alert %s", n.AlertID)
	}

	var body bytes.Buffer
	if err := e.body.Execute(&body, n); err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	subject := fmt.Sprintf("Price alert: %s-%s now %s %s", n.Route.From, n.Route.To, n.CurrentPrice.StringFixed(2), n.Currency)
	msg := buildMessage(e.config.From, recipients, subject, body.String())
	return e.sendMail(ctx, recipients, msg)
}

func (e *EmailNotifier) recipients(n PriceNotification) []string {
	out := make([]string, 0, len(e.config.Recipients)+1)
	seen := make(map[string]bool)
	for _, addr := range append([]string{n.Email}, e.config.Recipients...) {
		addr = strings.TrimSpace(addr)
		if addr == "" || seen[strings.ToLower(addr)] {
			continue
		}
		seen[strings.ToLower(addr)] = true
		out = append(out, addr)
	}
	return out
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(msg.String())
}

func (e *EmailNotifier) sendMail(ctx context.Context, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	tlsConfig := &tls.Config{ServerName: e.config.Host}

	client, err := e.connect(ctx, addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer client.Close()

	if e.config.Username != "" && e.config.Password != "" {
		auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(extractEmail(e.config.From)); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(extractEmail(rcpt)); err != nil {
			return fmt.Errorf("add recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return client.Quit()
}

func (e *EmailNotifier) connect(ctx context.Context, addr string, tlsConfig *tls.Config) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	if e.config.Port == 465 {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, e.config.Host)
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, e.config.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS: %w", err)
		}
	}
	return client, nil
}

// extractEmail returns the address part of "Name <addr>".
func extractEmail(addr string) string {
	if start := strings.Index(addr, "<"); start != -1 {
		if end := strings.Index(addr, ">"); end > start {
			return addr[start+1 : end]
		}
	}
	return addr
}

const emailTemplate = `Good news! A fare you are watching has dropped to your target.

Route:   {{.RouteLabel}}
Class:   {{.TravelClass}}
Price:   {{.CurrentPrice.StringFixed 2}} {{.Currency}}
Target:  {{.TargetPrice.StringFixed 2}} {{.Currency}}
{{- with .Offer.Airline}}
Airline: {{.}}
{{- end}}
{{- with .Offer.BookingLink}}

Book now: {{.}}
{{- end}}

This alert has now been switched off. Create a new alert to keep watching this route.
`
