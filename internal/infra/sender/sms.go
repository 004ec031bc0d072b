package sender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookbell/internal/domain/entity"
	"bookbell/internal/usecase/dispatch"
)

// SMSConfig contains configuration for the SMS gateway.
type SMSConfig struct {
	// Enabled indicates whether SMS delivery is configured
	Enabled bool

	// APIURL is the gateway's send endpoint
	APIURL string

	// APIKey authenticates send requests
	APIKey string

	// SenderID is the alphanumeric originator shown to recipients
	SenderID string

	// CountryCode is applied when normalizing local phone numbers
	CountryCode string

	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// SMSSender delivers messages through an SMS gateway's form-encoded API.
type SMSSender struct {
	config      SMSConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewSMSSender creates an SMS sender. Gateways meter per-second throughput
// tightly; 2 req/s with a small burst stays inside common free-tier quotas.
func NewSMSSender(config SMSConfig) *SMSSender {
	return &SMSSender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(2, 5),
	}
}

// Channel implements dispatch.Sender.
func (s *SMSSender) Channel() entity.Channel { return entity.ChannelSMS }

// IsEnabled implements dispatch.Sender.
func (s *SMSSender) IsEnabled() bool { return s.config.Enabled }

// Send implements dispatch.Sender with a single delivery attempt. The
// destination is normalized to E.164 before it reaches the gateway.
func (s *SMSSender) Send(ctx context.Context, msg *dispatch.Message) error {
	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	to, err := NormalizePhone(msg.To, s.config.CountryCode)
	if err != nil {
		return fmt.Errorf("normalize destination: %w", err)
	}

	form := url.Values{
		"to":     {to},
		"from":   {s.config.SenderID},
		"body":   {msg.Body},
		"apikey": {s.config.APIKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("SMS gateway returned %d: %s", resp.StatusCode, string(body))
}
