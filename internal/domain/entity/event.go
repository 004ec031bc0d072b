package entity

import (
	"fmt"
	"time"
)

// EventStatus is the lifecycle state of a booking as reported by the
// provider. Only confirmed events are eligible for reminders.
type EventStatus string

const (
	StatusPending   EventStatus = "pending"
	StatusConfirmed EventStatus = "confirmed"
	StatusCancelled EventStatus = "cancelled"
)

// Creator values distinguish bookings made by the business owner from
// bookings made by clients. Confirmation notices are only sent for the
// latter — an owner confirming their own manual entry needs no notice.
const (
	CreatedByOwner  = "owner"
	CreatedByClient = "client"
)

// Schedule layout constants. The provider reports date and time as separate
// strings in the business reference timezone (not UTC).
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Event is a schedulable appointment owned by a tenant. Immutable from the
// engine's perspective for the duration of one evaluation.
type Event struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"business_id"`
	Date        string      `json:"date"` // YYYY-MM-DD, business-local
	Time        string      `json:"time"` // HH:MM, business-local
	Status      EventStatus `json:"status"`
	ClientName  string      `json:"client_name"`
	ClientEmail string      `json:"client_email"`
	ClientPhone string      `json:"client_phone"`
	Service     string      `json:"service"`
	DurationMin int         `json:"duration_min"`
	Notes       string      `json:"notes"`
	CreatedBy   string      `json:"created_by"`

	// OptOuts lists channels the recipient has declined. A channel present
	// with value true must never receive a message for this event.
	OptOuts map[Channel]bool `json:"opt_outs,omitempty"`
}

// ScheduledAt parses the event's date and time in the given reference
// location. The provider's schedule strings are business-local wall-clock
// values, so interpreting them in any other location shifts the trigger
// window.
func (e *Event) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+e.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event %s schedule %q %q: %w", e.ID, e.Date, e.Time, ErrInvalidSchedule)
	}
	return t, nil
}

// OptedOut reports whether the recipient has opted out of the channel.
func (e *Event) OptedOut(ch Channel) bool {
	return e.OptOuts[ch]
}

// Contact returns the destination address for the channel and whether a
// usable one exists. Events without a valid destination for the active
// channel are not dispatch candidates.
func (e *Event) Contact(ch Channel) (string, bool) {
	switch ch {
	case ChannelEmail:
		return e.ClientEmail, e.ClientEmail != ""
	case ChannelSMS, ChannelWhatsApp:
		return e.ClientPhone, e.ClientPhone != ""
	}
	return "", false
}

// Validate checks the invariants the dispatch cycle relies on.
func (e *Event) Validate() error {
	if e.ID == "" {
		return ErrMissingEventID
	}
	if e.Date == "" || e.Time == "" {
		return ErrInvalidSchedule
	}
	return nil
}
