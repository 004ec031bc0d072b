package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_ScheduledAt(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)

	e := &Event{ID: "ev-1", Date: "2026-09-14", Time: "14:30"}
	got, err := e.ScheduledAt(loc)
	require.NoError(t, err)

	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.September, got.Month())
	assert.Equal(t, 14, got.Day())
	assert.Equal(t, 14, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.Equal(t, loc, got.Location())
}

func TestEvent_ScheduledAt_NilLocationDefaultsToUTC(t *testing.T) {
	e := &Event{ID: "ev-1", Date: "2026-01-02", Time: "09:00"}
	got, err := e.ScheduledAt(nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
}

func TestEvent_ScheduledAt_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		date string
		time string
	}{
		{"garbage date", "not-a-date", "14:30"},
		{"garbage time", "2026-09-14", "2pm"},
		{"empty", "", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := &Event{ID: "ev-1", Date: tc.date, Time: tc.time}
			_, err := e.ScheduledAt(time.UTC)
			assert.True(t, errors.Is(err, ErrInvalidSchedule))
		})
	}
}

func TestEvent_Contact(t *testing.T) {
	e := &Event{ClientEmail: "dana@example.com", ClientPhone: "0501234567"}

	addr, ok := e.Contact(ChannelEmail)
	assert.True(t, ok)
	assert.Equal(t, "dana@example.com", addr)

	phone, ok := e.Contact(ChannelSMS)
	assert.True(t, ok)
	assert.Equal(t, "0501234567", phone)

	phone, ok = e.Contact(ChannelWhatsApp)
	assert.True(t, ok)
	assert.Equal(t, "0501234567", phone)

	empty := &Event{}
	_, ok = empty.Contact(ChannelEmail)
	assert.False(t, ok)
	_, ok = empty.Contact(Channel("pigeon"))
	assert.False(t, ok)
}

func TestEvent_OptedOut(t *testing.T) {
	e := &Event{OptOuts: map[Channel]bool{ChannelSMS: true}}
	assert.True(t, e.OptedOut(ChannelSMS))
	assert.False(t, e.OptedOut(ChannelEmail))

	// nil map is safe
	assert.False(t, (&Event{}).OptedOut(ChannelSMS))
}

func TestEvent_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Event{Date: "2026-01-01", Time: "10:00"}).Validate(), ErrMissingEventID)
	assert.ErrorIs(t, (&Event{ID: "e1"}).Validate(), ErrInvalidSchedule)
	assert.NoError(t, (&Event{ID: "e1", Date: "2026-01-01", Time: "10:00"}).Validate())
}
