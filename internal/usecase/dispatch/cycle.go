// Package dispatch implements the scheduled notification dispatch engine:
// the decision of whether now is the right moment to notify for each
// pending appointment, crash-safe at-most-once delivery per (event,
// schedule) pair, and the per-cycle orchestration across tenants.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookbell/internal/domain/entity"
)

// Provider is the external, read-only source of tenants and events.
// Implementations live in internal/infra/provider.
type Provider interface {
	// ListTenants returns all tenants visible to the dispatcher.
	ListTenants(ctx context.Context) ([]*entity.Tenant, error)

	// ListEvents returns the events of one tenant. Implementations must
	// filter by tenant id client-side; server-side filtering has proven
	// unreliable in some deployments.
	ListEvents(ctx context.Context, tenantID string) ([]*entity.Event, error)
}

// CycleStats summarizes one full dispatch pass for logging.
type CycleStats struct {
	Tenants    int
	Candidates int
	Sent       int
	Deduped    int
	TooEarly   int
	Expired    int
	Skipped    int // no contact, opted out, bad schedule, channel unconfigured
	Failures   int
	Duration   time.Duration
}

// Cycle evaluates one campaign across all tenants and events. Create one
// per campaign; Run is not safe for concurrent invocation against the same
// Cycle (the poll scheduler serializes it).
type Cycle struct {
	provider  Provider
	senders   map[entity.Channel]Sender
	campaign  Campaign
	loc       *time.Location
	tolerance int // minutes, half-width of the firing window
	logger    *slog.Logger
	now       func() time.Time
}

// NewCycle wires a dispatch cycle for one campaign.
func NewCycle(
	provider Provider,
	senders map[entity.Channel]Sender,
	campaign Campaign,
	loc *time.Location,
	toleranceMinutes int,
	logger *slog.Logger,
) *Cycle {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Cycle{
		provider:  provider,
		senders:   senders,
		campaign:  campaign,
		loc:       loc,
		tolerance: toleranceMinutes,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one full pass: fetch tenants, evaluate every candidate
// event, consult and update the idempotency store, invoke senders.
//
// Provider failures are never fatal — they degrade to "zero candidates this
// cycle" and are logged. Send failures leave the event eligible for the
// next cycle, bounded by window expiry. The returned error is reserved for
// context cancellation.
func (c *Cycle) Run(ctx context.Context) (*CycleStats, error) {
	start := c.now()
	cycleID := uuid.New().String()
	stats := &CycleStats{}
	logger := c.logger.With(
		slog.String("campaign", c.campaign.Name),
		slog.String("cycle_id", cycleID))

	defer func() {
		stats.Duration = c.now().Sub(start)
		observeCycle(c.campaign.Name, stats)
		logger.Info("dispatch cycle completed",
			slog.Int("tenants", stats.Tenants),
			slog.Int("candidates", stats.Candidates),
			slog.Int("sent", stats.Sent),
			slog.Int("deduped", stats.Deduped),
			slog.Int("expired", stats.Expired),
			slog.Int("failures", stats.Failures),
			slog.Duration("duration", stats.Duration))
	}()

	tenants, err := c.provider.ListTenants(ctx)
	if err != nil {
		recordProviderFailure("tenants")
		logger.Warn("tenant fetch failed, zero candidates this cycle", slog.Any("error", err))
		return stats, ctx.Err()
	}
	stats.Tenants = len(tenants)

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := tenant.Validate(); err != nil {
			logger.Warn("skipping malformed tenant", slog.Any("error", err))
			continue
		}

		events, err := c.provider.ListEvents(ctx, tenant.ID)
		if err != nil {
			recordProviderFailure("events")
			logger.Warn("event fetch failed, skipping tenant",
				slog.String("tenant_id", tenant.ID),
				slog.Any("error", err))
			continue
		}

		for _, event := range events {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			c.evaluate(ctx, logger, tenant, event, stats)
		}
	}

	return stats, nil
}

// evaluate runs the decision chain for one (tenant, event) pair:
// eligibility → destination → window → dedup → send → record.
func (c *Cycle) evaluate(ctx context.Context, logger *slog.Logger, tenant *entity.Tenant, event *entity.Event, stats *CycleStats) {
	if err := event.Validate(); err != nil {
		stats.Skipped++
		return
	}
	if !c.campaign.Eligible(tenant, event) {
		return
	}
	stats.Candidates++

	channel := tenant.EffectiveChannel()
	eventLog := logger.With(
		slog.String("tenant_id", tenant.ID),
		slog.String("event_id", event.ID),
		slog.String("channel", string(channel)))

	if event.OptedOut(channel) {
		stats.Skipped++
		recordSuppressed(c.campaign.Name, "opt_out")
		return
	}
	to, ok := event.Contact(channel)
	if !ok {
		stats.Skipped++
		recordSuppressed(c.campaign.Name, "no_contact")
		return
	}

	at, err := event.ScheduledAt(c.loc)
	if err != nil {
		stats.Skipped++
		eventLog.Warn("unparseable event schedule", slog.Any("error", err))
		return
	}

	if c.campaign.Windowed {
		switch EvaluateWindow(at, c.now(), tenant.EffectiveLeadHours(), c.tolerance) {
		case TooEarly:
			stats.TooEarly++
			return
		case Expired:
			stats.Expired++
			recordSuppressed(c.campaign.Name, "expired")
			return
		case InWindow:
			// fall through to dedup + send
		}
	}

	key := c.campaign.Key(event)
	if c.campaign.Store.Contains(key) {
		stats.Deduped++
		recordSuppressed(c.campaign.Name, "dedup")
		return
	}

	sender, ok := c.senders[channel]
	if !ok || !sender.IsEnabled() {
		stats.Skipped++
		recordSuppressed(c.campaign.Name, "channel_unconfigured")
		eventLog.Warn("no sender configured for channel")
		return
	}

	msg := c.campaign.Compose(tenant, event, at)
	msg.To = to

	sendStart := c.now()
	if err := sender.Send(ctx, msg); err != nil {
		stats.Failures++
		recordSend(c.campaign.Name, channel, "failure", c.now().Sub(sendStart))
		eventLog.Warn("send failed, event remains eligible next cycle", slog.Any("error", err))
		return
	}
	recordSend(c.campaign.Name, channel, "success", c.now().Sub(sendStart))

	// Record only after a confirmed send. A persistence failure keeps the
	// in-memory record (duplicates stay suppressed for this process) and is
	// already logged by the store.
	if err := c.campaign.Store.Record(ctx, key); err != nil {
		recordPersistFailure(c.campaign.Name)
	}
	stats.Sent++
	eventLog.Info("notification sent", slog.String("dedup_key", key))
}
