// Package dedup provides the idempotency store that guarantees each
// notification is sent at most once per (event, schedule) pair, across
// process restarts.
//
// A record exists iff a notification for that exact key has already been
// successfully dispatched: the dispatch cycle calls Record only after a
// confirmed send, never on failure. Records older than the retention
// horizon are pruned on load; the horizon must exceed the longest plausible
// lead time plus poll interval so a legitimate entry is never evicted while
// its event is still pending.
//
// The design assumes a single active dispatcher process per store instance.
// Running multiple dispatchers against shared durable state races on the
// contains-then-record sequence and can double-send; that deployment is
// unsupported.
package dedup

import (
	"context"
	"fmt"
	"time"
)

// Retention is how long a sent-record is kept before pruning.
const Retention = 7 * 24 * time.Hour

// Namespaces for the independent record sets. The two scheduled cadences
// use disjoint namespaces so they may run concurrently.
const (
	NamespaceReminders     = "reminders"
	NamespaceConfirmations = "confirmations"
)

// ReminderKey builds the dedup key for a reminder. The scheduled date and
// time are part of the key on purpose: a rescheduled event produces a new
// key and becomes eligible for a fresh reminder, while the old key keeps
// suppressing the stale one.
func ReminderKey(eventID, date, timeOfDay string) string {
	return fmt.Sprintf("%s|%s|%s", eventID, date, timeOfDay)
}

// ConfirmationKey builds the dedup key for a one-time booking confirmation.
// Confirmations are per event, not per schedule.
func ConfirmationKey(eventID string) string {
	return eventID + "-confirmed"
}

// Store is the idempotency store contract shared by all backends.
//
// Implementations must make Record durable before returning, so that a
// crash immediately after a successful send does not produce a duplicate
// on restart. When durable persistence fails, implementations keep the
// in-memory record, log a warning, and return the error: duplicates stay
// suppressed for the life of the process, and the worst case after a crash
// is a single resend (see DESIGN.md).
type Store interface {
	// Load reads the persisted record set, drops entries older than
	// Retention, persists the pruned set back, and mirrors the surviving
	// keys in memory. A missing or corrupt backing store degrades to an
	// empty set rather than failing startup.
	Load(ctx context.Context) error

	// Contains reports whether the key has already been recorded.
	Contains(key string) bool

	// Record marks the key as sent at the current time. Idempotent: calling
	// it again for the same key is a no-op.
	Record(ctx context.Context, key string) error

	// Len returns the number of live records, for logging and metrics.
	Len() int
}
