package dispatch

import (
	"fmt"
	"time"

	"bookbell/internal/dedup"
	"bookbell/internal/domain/entity"
)

// Campaign is one notification program run by the dispatch cycle: an
// eligibility predicate, a dedup key namespace, and a message builder.
// The reminder and confirmation cadences are the same cycle shape
// parameterized by different campaigns, rather than two copies of the loop.
type Campaign struct {
	// Name labels logs and metrics ("reminder", "confirmation").
	Name string

	// Store is the idempotency store for this campaign's namespace.
	Store dedup.Store

	// Windowed indicates whether trigger-window evaluation applies.
	// Confirmation notices fire as soon as the event is first seen
	// eligible, with no lead-time arithmetic.
	Windowed bool

	// Eligible decides whether the (tenant, event) pair is a candidate at
	// all, before window evaluation and dedup.
	Eligible func(t *entity.Tenant, e *entity.Event) bool

	// Key derives the dedup key for an event.
	Key func(e *entity.Event) string

	// Compose renders the outbound message for the tenant's channel.
	Compose func(t *entity.Tenant, e *entity.Event, at time.Time) *Message
}

// Templates holds the channel template identifiers campaigns render with.
// WhatsApp requires provider-approved template IDs; email and SMS bodies
// are composed inline.
type Templates struct {
	WhatsAppReminderID     string
	WhatsAppConfirmationID string
}

// NewReminderCampaign builds the lead-time reminder campaign.
//
// Candidates: confirmed events of tenants with reminders enabled, with a
// usable destination for the tenant's channel and no opt-out. The dedup key
// includes the scheduled date and time, so rescheduling re-arms the
// reminder under a fresh key.
func NewReminderCampaign(store dedup.Store, tmpl Templates) Campaign {
	return Campaign{
		Name:     "reminder",
		Store:    store,
		Windowed: true,
		Eligible: func(t *entity.Tenant, e *entity.Event) bool {
			return t.RemindersEnabled && e.Status == entity.StatusConfirmed
		},
		Key: func(e *entity.Event) string {
			return dedup.ReminderKey(e.ID, e.Date, e.Time)
		},
		Compose: func(t *entity.Tenant, e *entity.Event, at time.Time) *Message {
			when := at.Format("02/01/2006 15:04")
			return &Message{
				FromName: t.Name,
				Subject:  fmt.Sprintf("Reminder: your appointment at %s", t.Name),
				Body: fmt.Sprintf(
					"Hi %s, this is a reminder of your %s appointment at %s on %s. See you soon!",
					e.ClientName, e.Service, t.Name, when),
				TemplateID:   tmpl.WhatsAppReminderID,
				TemplateVars: []string{e.ClientName, t.Name, e.Service, when},
			}
		},
	}
}

// NewConfirmationCampaign builds the one-time booking confirmation
// campaign: events that just became confirmed and were not entered by the
// tenant owner. "Just became" is enforced by the dedup key, not by diffing
// provider state — the first cycle that sees the event confirmed sends the
// notice, every later cycle is suppressed.
func NewConfirmationCampaign(store dedup.Store, tmpl Templates) Campaign {
	return Campaign{
		Name:     "confirmation",
		Store:    store,
		Windowed: false,
		Eligible: func(_ *entity.Tenant, e *entity.Event) bool {
			return e.Status == entity.StatusConfirmed && e.CreatedBy != entity.CreatedByOwner
		},
		Key: func(e *entity.Event) string {
			return dedup.ConfirmationKey(e.ID)
		},
		Compose: func(t *entity.Tenant, e *entity.Event, at time.Time) *Message {
			when := at.Format("02/01/2006 15:04")
			return &Message{
				FromName: t.Name,
				Subject:  fmt.Sprintf("Your appointment at %s is confirmed", t.Name),
				Body: fmt.Sprintf(
					"Hi %s, your %s appointment at %s on %s is confirmed.",
					e.ClientName, e.Service, t.Name, when),
				TemplateID:   tmpl.WhatsAppConfirmationID,
				TemplateVars: []string{e.ClientName, t.Name, e.Service, when},
			}
		},
	}
}
