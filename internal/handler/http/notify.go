package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"bookbell/internal/domain/entity"
	"bookbell/internal/handler/http/respond"
	"bookbell/internal/usecase/dispatch"
)

// NotifyHandler serves the on-demand send endpoints. Each endpoint is a
// thin wrapper over the channel senders: the booking platform supplies the
// recipient and opt-out state, and no scheduling or dedup logic applies.
type NotifyHandler struct {
	senders   map[entity.Channel]dispatch.Sender
	templates dispatch.Templates
	logger    *slog.Logger
}

// NewNotifyHandler wires the notify endpoints.
func NewNotifyHandler(senders map[entity.Channel]dispatch.Sender, templates dispatch.Templates, logger *slog.Logger) *NotifyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyHandler{senders: senders, templates: templates, logger: logger}
}

// notifyRequest is the common payload for single-recipient sends.
type notifyRequest struct {
	BusinessName string `json:"business_name"`
	Channel      string `json:"channel"`
	To           string `json:"to"`
	ClientName   string `json:"client_name"`
	Service      string `json:"service"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	OptedOut     bool   `json:"opted_out"`

	// Update notices carry the new schedule alongside the old one.
	NewDate string `json:"new_date,omitempty"`
	NewTime string `json:"new_time,omitempty"`
}

// broadcastRequest is the payload for tenant-initiated bulk messages.
type broadcastRequest struct {
	BusinessName string      `json:"business_name"`
	Channel      string      `json:"channel"`
	Message      string      `json:"message"`
	Recipients   []recipient `json:"recipients"`
}

type recipient struct {
	To         string `json:"to"`
	ClientName string `json:"client_name"`
	OptedOut   bool   `json:"opted_out"`
}

func (req *notifyRequest) validate() error {
	if req.BusinessName == "" {
		return errors.New("business_name is required")
	}
	if req.To == "" {
		return errors.New("to is required")
	}
	if req.ClientName == "" {
		return errors.New("client_name is required")
	}
	ch := entity.Channel(req.Channel)
	if !ch.Valid() {
		return fmt.Errorf("unknown channel %q", req.Channel)
	}
	return nil
}

// Confirmation handles POST /api/notify/confirmation: a booking was just
// approved and the client should hear about it now.
func (h *NotifyHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	when := fmt.Sprintf("%s %s", req.Date, req.Time)
	msg := &dispatch.Message{
		FromName:     req.BusinessName,
		To:           req.To,
		Subject:      fmt.Sprintf("Your appointment at %s is confirmed", req.BusinessName),
		Body:         fmt.Sprintf("Hi %s, your %s appointment at %s on %s is confirmed.", req.ClientName, req.Service, req.BusinessName, when),
		TemplateID:   h.templates.WhatsAppConfirmationID,
		TemplateVars: []string{req.ClientName, req.BusinessName, req.Service, when},
	}
	h.deliver(w, r, entity.Channel(req.Channel), req.OptedOut, msg)
}

// Update handles POST /api/notify/update: an appointment moved and the
// client should be told the new time.
func (h *NotifyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}
	if req.NewDate == "" || req.NewTime == "" {
		respond.Error(w, http.StatusBadRequest, errors.New("new_date and new_time are required"))
		return
	}

	newWhen := fmt.Sprintf("%s %s", req.NewDate, req.NewTime)
	msg := &dispatch.Message{
		FromName: req.BusinessName,
		To:       req.To,
		Subject:  fmt.Sprintf("Your appointment at %s was rescheduled", req.BusinessName),
		Body: fmt.Sprintf("Hi %s, your %s appointment at %s has moved to %s.",
			req.ClientName, req.Service, req.BusinessName, newWhen),
		// The reminder template carries the same positional slots
		// (name, business, service, time), so update notices reuse it
		// with the new schedule.
		TemplateID:   h.templates.WhatsAppReminderID,
		TemplateVars: []string{req.ClientName, req.BusinessName, req.Service, newWhen},
	}
	h.deliver(w, r, entity.Channel(req.Channel), req.OptedOut, msg)
}

// Broadcast handles POST /api/notify/broadcast: one free-form message from
// a tenant to many clients. Opted-out recipients are skipped, failures are
// counted rather than aborting the batch. WhatsApp is rejected because
// business-initiated sends require approved templates, not free text.
func (h *NotifyHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.BusinessName == "" {
		respond.Error(w, http.StatusBadRequest, errors.New("business_name is required"))
		return
	}
	if req.Message == "" {
		respond.Error(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}
	if len(req.Recipients) == 0 {
		respond.Error(w, http.StatusBadRequest, errors.New("no recipients"))
		return
	}
	ch := entity.Channel(req.Channel)
	if !ch.Valid() {
		respond.Error(w, http.StatusBadRequest, fmt.Errorf("unknown channel %q", req.Channel))
		return
	}
	if ch == entity.ChannelWhatsApp {
		respond.Error(w, http.StatusBadRequest, errors.New("broadcast cannot be sent over whatsapp"))
		return
	}

	sender, ok := h.senders[ch]
	if !ok || !sender.IsEnabled() {
		respond.Error(w, http.StatusConflict, fmt.Errorf("channel %q is not configured", req.Channel))
		return
	}

	sent, skipped, failed := 0, 0, 0
	for _, rcpt := range req.Recipients {
		if rcpt.OptedOut || rcpt.To == "" {
			skipped++
			continue
		}
		msg := &dispatch.Message{
			FromName: req.BusinessName,
			To:       rcpt.To,
			Subject:  fmt.Sprintf("A message from %s", req.BusinessName),
			Body:     req.Message,
		}
		if err := sender.Send(r.Context(), msg); err != nil {
			failed++
			h.logger.Warn("broadcast send failed",
				slog.String("channel", req.Channel),
				slog.Any("error", err))
			continue
		}
		sent++
	}

	respond.JSON(w, http.StatusOK, map[string]int{
		"sent":    sent,
		"skipped": skipped,
		"failed":  failed,
	})
}

// deliver sends one message, honoring the caller-supplied opt-out flag.
func (h *NotifyHandler) deliver(w http.ResponseWriter, r *http.Request, ch entity.Channel, optedOut bool, msg *dispatch.Message) {
	if optedOut {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "opted_out"})
		return
	}

	sender, ok := h.senders[ch]
	if !ok || !sender.IsEnabled() {
		respond.Error(w, http.StatusConflict, fmt.Errorf("channel %q is not configured", ch))
		return
	}

	if err := sender.Send(r.Context(), msg); err != nil {
		h.logger.Warn("on-demand send failed",
			slog.String("channel", string(ch)),
			slog.Any("error", err))
		respond.SafeError(w, http.StatusBadGateway, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
