package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookbell/internal/domain/entity"
)

func TestClient_ListTenants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/businesses", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"t1","name":"Glow Salon","reminder_lead_hours":24,"reminders_enabled":true,"notification_channel":"sms"},
			{"id":"t2","name":"Barber Bros","reminders_enabled":false}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	tenants, err := c.ListTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)

	assert.Equal(t, "t1", tenants[0].ID)
	assert.Equal(t, "Glow Salon", tenants[0].Name)
	assert.Equal(t, 24, tenants[0].LeadHours)
	assert.True(t, tenants[0].RemindersEnabled)
	assert.Equal(t, entity.ChannelSMS, tenants[0].Channel)

	// Omitted fields fall back to zero values; defaults are applied by the
	// entity accessors, not the transport.
	assert.Equal(t, 0, tenants[1].LeadHours)
	assert.Equal(t, entity.Channel(""), tenants[1].Channel)
}

func TestClient_ListEvents_FiltersForeignTenants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "t1", r.URL.Query().Get("business_id"))
		w.Header().Set("Content-Type", "application/json")
		// Simulates a platform that ignores the query parameter and
		// returns everything.
		_, _ = w.Write([]byte(`[
			{"id":"e1","business_id":"t1","date":"2026-09-01","time":"14:00","status":"confirmed","client_name":"Dana","client_phone":"0501234567","created_by":"client","notification_opt_outs":{"sms":true}},
			{"id":"e2","business_id":"t2","date":"2026-09-01","time":"15:00","status":"confirmed","client_name":"Noa"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	events, err := c.ListEvents(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, events, 1, "events of other tenants must be dropped client-side")

	want := entity.Event{
		ID:          "e1",
		TenantID:    "t1",
		Date:        "2026-09-01",
		Time:        "14:00",
		Status:      entity.StatusConfirmed,
		ClientName:  "Dana",
		ClientPhone: "0501234567",
		CreatedBy:   entity.CreatedByClient,
		OptOuts:     map[entity.Channel]bool{entity.ChannelSMS: true},
	}
	if diff := cmp.Diff(want, *events[0]); diff != "" {
		t.Errorf("event mapping mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, events[0].OptedOut(entity.ChannelSMS))
	assert.False(t, events[0].OptedOut(entity.ChannelEmail))
}

func TestClient_Get_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-token")
	_, err := c.ListTenants(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClient_Get_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	_, err := c.ListTenants(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
