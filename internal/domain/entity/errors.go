package entity

import "errors"

// Sentinel errors for domain layer validation. Callers match with errors.Is.
var (
	// ErrMissingTenantID indicates a tenant record without an identifier
	ErrMissingTenantID = errors.New("tenant id is required")

	// ErrMissingEventID indicates an event record without an identifier
	ErrMissingEventID = errors.New("event id is required")

	// ErrInvalidSchedule indicates an event date/time that cannot be parsed
	ErrInvalidSchedule = errors.New("invalid event schedule")
)
