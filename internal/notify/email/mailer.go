// Package email delivers game notifications over a transactional email API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIBaseURL targets the hosted transactional email API.
const DefaultAPIBaseURL = "https://api.resend.com"

// ErrMailerNotConfigured indicates a mailer is missing its API key or sender.
var ErrMailerNotConfigured = errors.New("email mailer is not configured")

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer sends one email. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// APIConfig configures the HTTP mailer.
type APIConfig struct {
	// APIKey authorizes requests; empty disables the mailer.
	APIKey string `env:"EXQUISITE_EMAIL_API_KEY"`
	// From is the sender address, e.g. "Stories <stories@example.com>".
	From string `env:"EXQUISITE_EMAIL_FROM"`
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `env:"EXQUISITE_EMAIL_BASE_URL"`
}

// APIMailer sends email through a Resend-compatible JSON API.
type APIMailer struct {
	cfg    APIConfig
	client *http.Client
}

// NewAPIMailer constructs the HTTP mailer. The client falls back to a
// 10-second-timeout default when nil.
func NewAPIMailer(cfg APIConfig, client *http.Client) *APIMailer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	return &APIMailer{cfg: cfg, client: client}
}

type apiSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send implements Mailer.
func (m *APIMailer) Send(ctx context.Context, msg Message) error {
	if m == nil || strings.TrimSpace(m.cfg.APIKey) == "" || strings.TrimSpace(m.cfg.From) == "" {
		return ErrMailerNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("email recipient is required")
	}

	payload, err := json.Marshal(apiSendRequest{
		From:    m.cfg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	url := strings.TrimRight(m.cfg.BaseURL, "/") + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send email: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
