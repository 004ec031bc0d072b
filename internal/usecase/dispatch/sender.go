package dispatch

import (
	"context"

	"bookbell/internal/domain/entity"
)

// Message is a rendered notification ready for transmission. Senders use
// the fields relevant to their channel and ignore the rest.
type Message struct {
	// FromName is the tenant's display name, shown as the sender where the
	// channel supports it (email From, SMS sender ID).
	FromName string

	// To is the destination: an email address or a phone number in
	// whatever format the provider stored it. Phone-based senders
	// normalize to E.164 themselves.
	To string

	// Subject is used by the email channel only.
	Subject string

	// Body is the free-text message for email and SMS.
	Body string

	// TemplateID and TemplateVars drive the WhatsApp channel, which only
	// transmits provider-approved templates with positional variables.
	TemplateID   string
	TemplateVars []string
}

// Sender transmits a rendered message over one channel.
//
// Implementations handle their own rate limiting and error logging. They
// must NOT retry: a failed send is simply reported, and the event remains
// eligible for the next poll cycle until its window expires.
type Sender interface {
	// Channel returns the channel this sender serves.
	Channel() entity.Channel

	// IsEnabled reports whether the channel is configured. Disabled
	// senders are skipped during dispatch.
	IsEnabled() bool

	// Send transmits the message, respecting context cancellation.
	Send(ctx context.Context, msg *Message) error
}
