package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookbell/internal/dedup"
	"bookbell/internal/domain/entity"
)

// fakeProvider serves fixed tenants/events, optionally failing.
type fakeProvider struct {
	tenants    []*entity.Tenant
	events     map[string][]*entity.Event
	tenantsErr error
	eventsErr  error
}

func (p *fakeProvider) ListTenants(_ context.Context) ([]*entity.Tenant, error) {
	return p.tenants, p.tenantsErr
}

func (p *fakeProvider) ListEvents(_ context.Context, tenantID string) ([]*entity.Event, error) {
	if p.eventsErr != nil {
		return nil, p.eventsErr
	}
	return p.events[tenantID], nil
}

// fakeSender records every message it is asked to transmit.
type fakeSender struct {
	channel entity.Channel
	enabled bool
	err     error
	sent    []*Message
}

func (s *fakeSender) Channel() entity.Channel { return s.channel }
func (s *fakeSender) IsEnabled() bool         { return s.enabled }
func (s *fakeSender) Send(_ context.Context, msg *Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dateTimeOf(at time.Time) (string, string) {
	return at.Format(entity.DateLayout), at.Format(entity.TimeLayout)
}

func reminderFixture(now time.Time, offset time.Duration) (*fakeProvider, *entity.Event) {
	date, timeOfDay := dateTimeOf(now.Add(offset))
	event := &entity.Event{
		ID:          "ev-1",
		TenantID:    "biz-1",
		Date:        date,
		Time:        timeOfDay,
		Status:      entity.StatusConfirmed,
		ClientName:  "Dana",
		ClientEmail: "dana@example.com",
		Service:     "Haircut",
		CreatedBy:   entity.CreatedByClient,
	}
	provider := &fakeProvider{
		tenants: []*entity.Tenant{{
			ID:               "biz-1",
			Name:             "Studio One",
			LeadHours:        12,
			RemindersEnabled: true,
			Channel:          entity.ChannelEmail,
		}},
		events: map[string][]*entity.Event{"biz-1": {event}},
	}
	return provider, event
}

func newReminderCycle(p Provider, sender *fakeSender, store dedup.Store, now time.Time) *Cycle {
	c := NewCycle(
		p,
		map[entity.Channel]Sender{sender.channel: sender},
		NewReminderCampaign(store, Templates{}),
		time.UTC,
		60,
		testLogger(),
	)
	c.now = func() time.Time { return now }
	return c
}

func TestCycle_FiresOnceInsideWindow(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	provider, _ := reminderFixture(now, 12*time.Hour+5*time.Minute)
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true}
	store := dedup.NewMemoryStore()

	cycle := newReminderCycle(provider, sender, store, now)
	stats, err := cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "dana@example.com", sender.sent[0].To)
	assert.Equal(t, "Studio One", sender.sent[0].FromName)
	assert.Contains(t, sender.sent[0].Body, "Dana")

	// Second cycle five minutes later: still in window, key recorded,
	// no second send.
	cycle.now = func() time.Time { return now.Add(5 * time.Minute) }
	stats, err = cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Deduped)
	assert.Len(t, sender.sent, 1)
}

func TestCycle_ExpiredWindowIsPermanentlySkipped(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	// Event 13h30m out: window is [11h, 13h] before the event, so the
	// cycle is early. Jump the clock so the window has fully passed
	// without ever firing.
	provider, _ := reminderFixture(now, 13*time.Hour+30*time.Minute)
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true}
	store := dedup.NewMemoryStore()

	cycle := newReminderCycle(provider, sender, store, now.Add(3*time.Hour))
	stats, err := cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Expired)
	assert.Empty(t, sender.sent)
}

func TestCycle_TooEarlyLeavesNoState(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	provider, _ := reminderFixture(now, 48*time.Hour)
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true}
	store := dedup.NewMemoryStore()

	stats, err := newReminderCycle(provider, sender, store, now).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TooEarly)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, sender.sent)
}

func TestCycle_NoDuplicateAcrossRestart(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	provider, _ := reminderFixture(now, 12*time.Hour)
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true}

	store := dedup.NewFileStore(dir, dedup.NamespaceReminders, testLogger())
	require.NoError(t, store.Load(context.Background()))
	stats, err := newReminderCycle(provider, sender, store, now).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Sent)

	// Simulated restart: fresh store over the same backing file.
	store2 := dedup.NewFileStore(dir, dedup.NamespaceReminders, testLogger())
	require.NoError(t, store2.Load(context.Background()))
	stats, err = newReminderCycle(provider, sender, store2, now.Add(10*time.Minute)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Deduped)
	assert.Len(t, sender.sent, 1)
}

func TestCycle_RescheduledEventGetsFreshReminder(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	provider, event := reminderFixture(now, 12*time.Hour)
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true}
	store := dedup.NewMemoryStore()

	cycle := newReminderCycle(provider, sender, store, now)
	_, err := cycle.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	// Same event id, new schedule: the old key stays recorded, the new
	// (id, date, time) tuple is un-sent.
	event.Date, event.Time = dateTimeOf(now.Add(36 * time.Hour))
	cycle.now = func() time.Time { return now.Add(24 * time.Hour) }
	stats, err := cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Sent)
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, 2, store.Len())
}

func TestCycle_DisabledTenantNeverSends(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	provider, _ := reminderFixture(now, 12*time.Hour)
	provider.tenants[0].RemindersEnabled = false
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true}

	stats, err := newReminderCycle(provider, sender, dedup.NewMemoryStore(), now).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Candidates)
	assert.Empty(t, sender.sent)
}

func TestCycle_SendFailureLeavesEventEligible(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	provider, _ := reminderFixture(now, 12*time.Hour)
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true, err: errors.New("smtp 451")}
	store := dedup.NewMemoryStore()

	cycle := newReminderCycle(provider, sender, store, now)
	stats, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 0, store.Len()) // never recorded on failure

	// Transport recovers: the next cycle retries naturally.
	sender.err = nil
	cycle.now = func() time.Time { return now.Add(10 * time.Minute) }
	stats, err = cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Len(t, sender.sent, 1)
}

func TestCycle_ProviderFailureIsNotFatal(t *testing.T) {
	provider := &fakeProvider{tenantsErr: errors.New("502 bad gateway")}
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true}

	stats, err := newReminderCycle(provider, sender, dedup.NewMemoryStore(), time.Now()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Tenants)
	assert.Empty(t, sender.sent)
}

func TestCycle_OptOutAndMissingContact(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	provider, event := reminderFixture(now, 12*time.Hour)
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: true}

	event.OptOuts = map[entity.Channel]bool{entity.ChannelEmail: true}
	stats, err := newReminderCycle(provider, sender, dedup.NewMemoryStore(), now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, sender.sent)

	event.OptOuts = nil
	event.ClientEmail = ""
	stats, err = newReminderCycle(provider, sender, dedup.NewMemoryStore(), now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, sender.sent)
}

func TestCycle_ConfirmationCampaign(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	date, timeOfDay := dateTimeOf(now.Add(72 * time.Hour))

	clientBooking := &entity.Event{
		ID: "ev-c", TenantID: "biz-1", Date: date, Time: timeOfDay,
		Status: entity.StatusConfirmed, ClientName: "Noa",
		ClientPhone: "0501234567", CreatedBy: entity.CreatedByClient,
	}
	ownerBooking := &entity.Event{
		ID: "ev-o", TenantID: "biz-1", Date: date, Time: timeOfDay,
		Status: entity.StatusConfirmed, ClientName: "Walk-in",
		ClientPhone: "0529876543", CreatedBy: entity.CreatedByOwner,
	}
	pendingBooking := &entity.Event{
		ID: "ev-p", TenantID: "biz-1", Date: date, Time: timeOfDay,
		Status: entity.StatusPending, ClientName: "Yael",
		ClientPhone: "0541112223", CreatedBy: entity.CreatedByClient,
	}

	provider := &fakeProvider{
		tenants: []*entity.Tenant{{
			ID: "biz-1", Name: "Studio One",
			RemindersEnabled: true, Channel: entity.ChannelSMS,
		}},
		events: map[string][]*entity.Event{
			"biz-1": {clientBooking, ownerBooking, pendingBooking},
		},
	}
	sender := &fakeSender{channel: entity.ChannelSMS, enabled: true}
	store := dedup.NewMemoryStore()

	cycle := NewCycle(
		provider,
		map[entity.Channel]Sender{entity.ChannelSMS: sender},
		NewConfirmationCampaign(store, Templates{}),
		time.UTC, 60, testLogger(),
	)
	cycle.now = func() time.Time { return now }

	// Confirmation fires regardless of window distance, but only for the
	// client-created confirmed booking.
	stats, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "0501234567", sender.sent[0].To)
	assert.True(t, store.Contains(dedup.ConfirmationKey("ev-c")))

	// Second scan: one-time notice, suppressed by the -confirmed key.
	stats, err = cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Deduped)
}

func TestCycle_SenderDisabledCountsSkip(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	provider, _ := reminderFixture(now, 12*time.Hour)
	sender := &fakeSender{channel: entity.ChannelEmail, enabled: false}
	store := dedup.NewMemoryStore()

	stats, err := newReminderCycle(provider, sender, store, now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, store.Len())
}
