package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfigured indicates the remote base URL or API key is missing.
	// Sync is disabled in this state; callers report it, they never fail on it.
	ErrNotConfigured = errors.New("sync not configured")

	// ErrUnknownTable indicates a table has no registered TableSpec.
	ErrUnknownTable = errors.New("unknown table")

	// ErrMissingIdentity indicates a record or payload carries no identity key.
	ErrMissingIdentity = errors.New("missing identity key")

	// ErrMalformedRow indicates a remote row could not be parsed into a Record.
	ErrMalformedRow = errors.New("malformed remote row")

	// ErrInvalidKind indicates an operation kind outside INSERT, UPDATE, DELETE.
	ErrInvalidKind = errors.New("invalid operation kind")

	// ErrSuperseded indicates a queue entry was coalesced with a newer mutation
	// while it was being dispatched, so the requested transition no longer applies.
	ErrSuperseded = errors.New("queue entry superseded")
)
