package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bookbell/internal/domain/entity"
	"bookbell/internal/usecase/dispatch"
)

// EmailConfig contains configuration for the transactional email provider.
type EmailConfig struct {
	// Enabled indicates whether email delivery is configured
	Enabled bool

	// APIURL is the provider's send endpoint
	APIURL string

	// APIKey authenticates send requests
	APIKey string

	// FromAddress is the verified sender address; the display name is set
	// per message to the tenant's business name
	FromAddress string

	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// EmailSender delivers messages through a transactional email HTTP API.
type EmailSender struct {
	config      EmailConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewEmailSender creates an email sender. Transactional providers tolerate
// high rates; the limiter is a batch smoother, not a quota guard.
func NewEmailSender(config EmailConfig) *EmailSender {
	return &EmailSender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(10, 20),
	}
}

// Channel implements dispatch.Sender.
func (s *EmailSender) Channel() entity.Channel { return entity.ChannelEmail }

// IsEnabled implements dispatch.Sender.
func (s *EmailSender) IsEnabled() bool { return s.config.Enabled }

// emailPayload is the provider's send request body.
type emailPayload struct {
	From     emailAddress   `json:"from"`
	To       []emailAddress `json:"to"`
	Subject  string         `json:"subject"`
	TextBody string         `json:"text_body"`
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Send implements dispatch.Sender with a single delivery attempt.
func (s *EmailSender) Send(ctx context.Context, msg *dispatch.Message) error {
	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	payload := emailPayload{
		From:     emailAddress{Email: s.config.FromAddress, Name: msg.FromName},
		To:       []emailAddress{{Email: msg.To}},
		Subject:  msg.Subject,
		TextBody: msg.Body,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("email API returned %d: %s", resp.StatusCode, string(body))
}
