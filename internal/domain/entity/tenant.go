// Package entity defines the core domain types for the notification
// dispatch engine: tenants (businesses) and their schedulable events
// (bookings). Both are owned and mutated by the external booking provider;
// the engine treats them as read-only snapshots for the duration of one
// dispatch cycle.
package entity

// Channel identifies an outbound notification channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

// DefaultLeadHours is the reminder lead time applied when a tenant has no
// explicit configuration.
const DefaultLeadHours = 12

// Tenant is an independent business whose events and reminder configuration
// are isolated from other tenants.
type Tenant struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	LeadHours        int     `json:"lead_hours"`
	RemindersEnabled bool    `json:"reminders_enabled"`
	Channel          Channel `json:"channel"`
}

// EffectiveLeadHours returns the tenant's configured lead time, falling back
// to DefaultLeadHours when unset or nonsensical.
func (t *Tenant) EffectiveLeadHours() int {
	if t.LeadHours <= 0 {
		return DefaultLeadHours
	}
	return t.LeadHours
}

// EffectiveChannel returns the tenant's channel preference, defaulting to
// email when the provider supplies none.
func (t *Tenant) EffectiveChannel() Channel {
	if t.Channel.Valid() {
		return t.Channel
	}
	return ChannelEmail
}

// Validate checks the invariants the dispatch cycle relies on.
func (t *Tenant) Validate() error {
	if t.ID == "" {
		return ErrMissingTenantID
	}
	return nil
}
