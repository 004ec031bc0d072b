package sender

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookbell/internal/domain/entity"
	"bookbell/internal/usecase/dispatch"
)

func TestEmailSender_Send(t *testing.T) {
	var got emailPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer email-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewEmailSender(EmailConfig{
		Enabled:     true,
		APIURL:      srv.URL,
		APIKey:      "email-key",
		FromAddress: "notify@bookbell.app",
		Timeout:     5 * time.Second,
	})
	assert.Equal(t, entity.ChannelEmail, s.Channel())
	assert.True(t, s.IsEnabled())

	err := s.Send(context.Background(), &dispatch.Message{
		FromName: "Glow Salon",
		To:       "dana@example.com",
		Subject:  "Reminder: your appointment at Glow Salon",
		Body:     "Hi Dana, see you soon!",
	})
	require.NoError(t, err)

	assert.Equal(t, "notify@bookbell.app", got.From.Email)
	assert.Equal(t, "Glow Salon", got.From.Name)
	require.Len(t, got.To, 1)
	assert.Equal(t, "dana@example.com", got.To[0].Email)
	assert.Equal(t, "Reminder: your appointment at Glow Salon", got.Subject)
	assert.Equal(t, "Hi Dana, see you soon!", got.TextBody)
}

func TestEmailSender_Send_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid recipient"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewEmailSender(EmailConfig{Enabled: true, APIURL: srv.URL, Timeout: 5 * time.Second})
	err := s.Send(context.Background(), &dispatch.Message{To: "not-an-address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestSMSSender_Send_NormalizesDestination(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		values, err := parseForm(string(body))
		require.NoError(t, err)
		form = values
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSMSSender(SMSConfig{
		Enabled:     true,
		APIURL:      srv.URL,
		APIKey:      "sms-key",
		SenderID:    "BookBell",
		CountryCode: "972",
		Timeout:     5 * time.Second,
	})
	assert.Equal(t, entity.ChannelSMS, s.Channel())

	err := s.Send(context.Background(), &dispatch.Message{
		To:   "050-123-4567",
		Body: "Hi Dana, see you soon!",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"+972501234567"}, form["to"])
	assert.Equal(t, []string{"BookBell"}, form["from"])
	assert.Equal(t, []string{"Hi Dana, see you soon!"}, form["body"])
	assert.Equal(t, []string{"sms-key"}, form["apikey"])
}

func TestSMSSender_Send_RejectsUnusableNumber(t *testing.T) {
	s := NewSMSSender(SMSConfig{Enabled: true, APIURL: "http://unused", Timeout: time.Second})

	err := s.Send(context.Background(), &dispatch.Message{To: "---", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize destination")
}

func TestWhatsAppSender_Send(t *testing.T) {
	var got whatsAppPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer wa-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWhatsAppSender(WhatsAppConfig{
		Enabled:     true,
		APIURL:      srv.URL,
		Token:       "wa-token",
		CountryCode: "972",
		Timeout:     5 * time.Second,
	})
	assert.Equal(t, entity.ChannelWhatsApp, s.Channel())

	err := s.Send(context.Background(), &dispatch.Message{
		To:           "0501234567",
		TemplateID:   "appointment_reminder",
		TemplateVars: []string{"Dana", "Glow Salon", "Haircut", "01/09/2026 14:00"},
	})
	require.NoError(t, err)

	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "+972501234567", got.To)
	assert.Equal(t, "template", got.Type)
	assert.Equal(t, "appointment_reminder", got.Template.Name)
	require.Len(t, got.Template.Components, 1)
	require.Len(t, got.Template.Components[0].Parameters, 4)
	assert.Equal(t, "Dana", got.Template.Components[0].Parameters[0].Text)
}

func TestWhatsAppSender_Send_RequiresTemplate(t *testing.T) {
	s := NewWhatsAppSender(WhatsAppConfig{Enabled: true, APIURL: "http://unused", Timeout: time.Second})

	err := s.Send(context.Background(), &dispatch.Message{To: "0501234567", Body: "free-form"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")
}

func parseForm(body string) (map[string][]string, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, err
	}
	return values, nil
}
