package model

import (
	"errors"
	"fmt"
)

// Failure taxonomy for claim operations. Every mutation either returns the
// updated claim snapshot or one of these; partial writes never happen.
var (
	// ErrNotFound means the claim id is unknown, or outside the actor's
	// visibility (existence is not revealed to out-of-scope actors).
	ErrNotFound = errors.New("claim not found")

	// ErrStoreConflict means a concurrent writer got there first. Callers
	// may re-read and reapply.
	ErrStoreConflict = errors.New("claim was modified concurrently")
)

// ForbiddenError means the actor's role or ownership does not allow the
// requested action, regardless of claim state.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// Forbidden builds a ForbiddenError with a formatted reason.
func Forbidden(format string, args ...any) error {
	return &ForbiddenError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError means the claim's current status does not permit the
// requested action. Distinct from ForbiddenError: the actor could perform the
// action, just not in this state.
type InvalidTransitionError struct {
	Current Status
	Action  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a claim in status %q", e.Action, e.Current)
}

// ValidationError means required input is missing or invalid. The caller must
// fix the request; retrying unchanged will fail again.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// IngestError classifies receipt ingestion failures so the webhook caller can
// decide on retries: transient failures (OCR unreachable, concurrent write)
// are retryable with backoff, permanent ones are caller-input defects.
type IngestError struct {
	Transient bool
	Cause     error
}

func (e *IngestError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("ingest failed (%s): %v", kind, e.Cause)
}

func (e *IngestError) Unwrap() error {
	return e.Cause
}
