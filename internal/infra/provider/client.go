// Package provider implements the read-only client for the booking
// platform's REST API, the system of record for tenants and appointments.
//
// The API uses bearer token auth and plain JSON. All calls run through a
// shared circuit breaker so a platform outage degrades dispatch cycles to
// "zero candidates" quickly instead of stalling every tenant fan-out on
// timeouts.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bookbell/internal/domain/entity"
	"bookbell/internal/resilience/circuitbreaker"
)

// Client talks to the booking platform API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a booking API client. baseURL must not end with a
// trailing slash; token is sent as a bearer credential on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		token:      token,
		breaker:    circuitbreaker.New(circuitbreaker.BookingAPIConfig()),
	}
}

// tenantPayload mirrors the platform's business object.
type tenantPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	LeadHours        int    `json:"reminder_lead_hours"`
	RemindersEnabled bool   `json:"reminders_enabled"`
	Channel          string `json:"notification_channel"`
}

// eventPayload mirrors the platform's appointment object.
type eventPayload struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"business_id"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	Status      string          `json:"status"`
	ClientName  string          `json:"client_name"`
	ClientEmail string          `json:"client_email"`
	ClientPhone string          `json:"client_phone"`
	Service     string          `json:"service"`
	DurationMin int             `json:"duration_minutes"`
	Notes       string          `json:"notes"`
	CreatedBy   string          `json:"created_by"`
	OptOuts     map[string]bool `json:"notification_opt_outs"`
}

// ListTenants returns every business visible to the dispatcher's token.
func (c *Client) ListTenants(ctx context.Context) ([]*entity.Tenant, error) {
	var payload []tenantPayload
	if err := c.get(ctx, "/api/businesses", nil, &payload); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	tenants := make([]*entity.Tenant, 0, len(payload))
	for _, p := range payload {
		tenants = append(tenants, &entity.Tenant{
			ID:               p.ID,
			Name:             p.Name,
			LeadHours:        p.LeadHours,
			RemindersEnabled: p.RemindersEnabled,
			Channel:          entity.Channel(p.Channel),
		})
	}
	return tenants, nil
}

// ListEvents returns the appointments of one tenant.
//
// The tenant id is passed as a query parameter AND re-checked client-side:
// some platform versions ignore unknown query parameters and return every
// event, which would cross-notify other businesses' clients. The local
// filter is the safety net that makes that impossible.
func (c *Client) ListEvents(ctx context.Context, tenantID string) ([]*entity.Event, error) {
	params := url.Values{"business_id": {tenantID}}
	var payload []eventPayload
	if err := c.get(ctx, "/api/events", params, &payload); err != nil {
		return nil, fmt.Errorf("list events for tenant %s: %w", tenantID, err)
	}

	events := make([]*entity.Event, 0, len(payload))
	for _, p := range payload {
		if p.TenantID != tenantID {
			continue
		}
		optOuts := make(map[entity.Channel]bool, len(p.OptOuts))
		for ch, v := range p.OptOuts {
			optOuts[entity.Channel(ch)] = v
		}
		events = append(events, &entity.Event{
			ID:          p.ID,
			TenantID:    p.TenantID,
			Date:        p.Date,
			Time:        p.Time,
			Status:      entity.EventStatus(p.Status),
			ClientName:  p.ClientName,
			ClientEmail: p.ClientEmail,
			ClientPhone: p.ClientPhone,
			Service:     p.Service,
			DurationMin: p.DurationMin,
			Notes:       p.Notes,
			CreatedBy:   p.CreatedBy,
			OptOuts:     optOuts,
		})
	}
	return events, nil
}

// get performs an authenticated GET through the circuit breaker and decodes
// the JSON response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request %s: %w", path, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("booking API %s returned %d: %s", path, resp.StatusCode, truncate(b, 200))
		}
		return b, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
