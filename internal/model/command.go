// Package model defines the domain types shared across the Manifest runtime:
// entities, commands, domain events, and the HTTP response envelopes.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// Command execution errors. These are request errors, not guard failures:
// the HTTP adapter maps them to distinct status codes (404 / 409 / 409).
var (
	// ErrUnknownCommand is returned when no definition is registered for the
	// (entity, command) pair. A configuration error, never a guard failure.
	ErrUnknownCommand = errors.New("manifest: unknown command")
	// ErrStaleState is returned when a concurrent command advanced the
	// manifest state version past what this command read.
	ErrStaleState = errors.New("manifest: stale state")
	// ErrIdempotencyConflict is returned when an idempotency key is reused
	// with a different command fingerprint.
	ErrIdempotencyConflict = errors.New("manifest: idempotency key reused with different request")
)

// GuardSeverity classifies a guard as hard-stop or advisory.
type GuardSeverity string

const (
	SeverityBlock GuardSeverity = "BLOCK"
	SeverityWarn  GuardSeverity = "WARN"
)

// GuardFailure describes the first BLOCK guard that rejected a command.
type GuardFailure struct {
	Index     int    `json:"index"`
	GuardID   string `json:"guard_id"`
	Formatted string `json:"formatted"`
}

// GuardWarning is a failed WARN guard attached to a successful result.
type GuardWarning struct {
	Index     int    `json:"index"`
	GuardID   string `json:"guard_id"`
	Formatted string `json:"formatted"`
}

// CommandResult is the outcome of a command execution. Exactly one of the
// success and failure branches is populated:
//
//   - Success: Success=true, Result / EmittedEvents / Warnings set.
//   - Guard failure: Success=false, GuardFailure set. Expected and
//     client-facing, never an error.
//
// Request errors (unknown command, stale state, idempotency conflict) and
// internal errors are returned as Go errors alongside a zero CommandResult.
type CommandResult struct {
	Success       bool            `json:"success"`
	Result        json.RawMessage `json:"result,omitempty"`
	EmittedEvents []DomainEvent   `json:"emitted_events,omitempty"`
	Warnings      []GuardWarning  `json:"warnings,omitempty"`
	GuardFailure  *GuardFailure   `json:"guard_failure,omitempty"`

	// Created reports whether the command inserted a new entity instance.
	// The HTTP adapter uses it to pick 201 over 200.
	Created bool `json:"created,omitempty"`

	// Replayed is set when the result was served from the idempotency store
	// instead of re-executing the command. Not persisted.
	Replayed bool `json:"-"`
}

// DomainEvent is produced by a successful command and delivered through the
// transactional outbox. Append-only.
type DomainEvent struct {
	Type        string         `json:"type"`
	TenantID    string         `json:"tenant_id"`
	AggregateID string         `json:"aggregate_id"`
	Payload     map[string]any `json:"payload"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
