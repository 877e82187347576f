// Package ingest coordinates data acquisition from upstream biomedical sources.
package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for job status transition validation.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidTransition indicates an invalid status transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminalStatusImmutable indicates an attempt to transition out of a
	// terminal status.
	ErrTerminalStatusImmutable = errors.New("terminal status is immutable")

	// ErrUnknownStatus indicates a status outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown job status")
)

// ValidateStatusTransition validates a job status transition.
//
// Valid transitions:
//   - PENDING → {RUNNING, CANCELLED}
//   - RUNNING → {COMPLETED, FAILED, PARTIAL, CANCELLED}
//   - terminal → same status (idempotent)
//
// Terminal states (COMPLETED, FAILED, PARTIAL, CANCELLED) are absorbing:
// once entered, only the idempotent self-transition is allowed. Appending an
// error to a job is not a transition and is always permitted.
func ValidateStatusTransition(from, to Status) error {
	if !from.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}

	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}

	if from.IsTerminal() {
		if from != to {
			return fmt.Errorf("%w: %s → %s", ErrTerminalStatusImmutable, from, to)
		}

		return nil // Idempotent terminal state
	}

	switch from {
	case StatusPending:
		if to == StatusRunning || to == StatusCancelled {
			return nil
		}
	case StatusRunning:
		switch to {
		case StatusCompleted, StatusFailed, StatusPartial, StatusCancelled:
			return nil
		}
	}

	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}
