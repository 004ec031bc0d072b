package dispatch

import "time"

// Phase is the position of an event relative to one reminder lead time.
type Phase int

const (
	// TooEarly: the firing window has not opened yet; re-evaluate later.
	TooEarly Phase = iota
	// InWindow: now is the correct moment to fire.
	InWindow
	// Expired: the window has closed (including events already in the
	// past); the notification is permanently skipped.
	Expired
)

// String returns the phase name for logging.
func (p Phase) String() string {
	switch p {
	case TooEarly:
		return "too_early"
	case InWindow:
		return "in_window"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// EvaluateWindow decides whether now is the correct moment to fire a
// reminder for an event, given a target lead time and a tolerance band.
//
// With until = eventAt - now and target = leadHours, the reminder fires
// when target-tolerance <= until <= target+tolerance. Durations are
// compared exactly rather than truncated to whole minutes; the half-open
// rounding the alternative invites is exactly the kind of off-by-one that
// makes windows unfire at their edges.
//
// The poll interval driving this evaluation must be smaller than twice the
// tolerance, or a window can open and close entirely between two polls.
func EvaluateWindow(eventAt, now time.Time, leadHours, toleranceMinutes int) Phase {
	until := eventAt.Sub(now)
	target := time.Duration(leadHours) * time.Hour
	tolerance := time.Duration(toleranceMinutes) * time.Minute

	switch {
	case until > target+tolerance:
		return TooEarly
	case until < target-tolerance:
		return Expired
	default:
		return InWindow
	}
}
