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

// WhatsAppConfig contains configuration for the WhatsApp Business API.
type WhatsAppConfig struct {
	// Enabled indicates whether WhatsApp delivery is configured
	Enabled bool

	// APIURL is the business API messages endpoint for the sending number
	APIURL string

	// Token is the business API access token
	Token string

	// CountryCode is applied when normalizing local phone numbers
	CountryCode string

	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// WhatsAppSender delivers messages through the WhatsApp Business API.
// Business-initiated messages must use pre-approved templates, so the
// message's template ID and positional variables are sent instead of its
// free-form body.
type WhatsAppSender struct {
	config      WhatsAppConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewWhatsAppSender creates a WhatsApp sender.
func NewWhatsAppSender(config WhatsAppConfig) *WhatsAppSender {
	return &WhatsAppSender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(5, 10),
	}
}

// Channel implements dispatch.Sender.
func (s *WhatsAppSender) Channel() entity.Channel { return entity.ChannelWhatsApp }

// IsEnabled implements dispatch.Sender.
func (s *WhatsAppSender) IsEnabled() bool { return s.config.Enabled }

// whatsAppPayload is the business API template message request.
type whatsAppPayload struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         whatsAppTemplate `json:"template"`
}

type whatsAppTemplate struct {
	Name       string              `json:"name"`
	Language   whatsAppLanguage    `json:"language"`
	Components []whatsAppComponent `json:"components,omitempty"`
}

type whatsAppLanguage struct {
	Code string `json:"code"`
}

type whatsAppComponent struct {
	Type       string              `json:"type"`
	Parameters []whatsAppParameter `json:"parameters"`
}

type whatsAppParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send implements dispatch.Sender with a single delivery attempt.
func (s *WhatsAppSender) Send(ctx context.Context, msg *dispatch.Message) error {
	if msg.TemplateID == "" {
		return fmt.Errorf("whatsapp requires an approved template id")
	}
	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	to, err := NormalizePhone(msg.To, s.config.CountryCode)
	if err != nil {
		return fmt.Errorf("normalize destination: %w", err)
	}

	params := make([]whatsAppParameter, 0, len(msg.TemplateVars))
	for _, v := range msg.TemplateVars {
		params = append(params, whatsAppParameter{Type: "text", Text: v})
	}
	payload := whatsAppPayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: whatsAppTemplate{
			Name:     msg.TemplateID,
			Language: whatsAppLanguage{Code: "he"},
			Components: []whatsAppComponent{
				{Type: "body", Parameters: params},
			},
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.Token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("whatsapp API returned %d: %s", resp.StatusCode, string(body))
}
