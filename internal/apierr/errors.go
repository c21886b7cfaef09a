// Package apierr defines AVA's error taxonomy: TransientExternal,
// PermanentInput, ConfigurationError, InvariantViolation and RateLimited,
// as documented in the error handling design.
package apierr

import (
	"errors"
	"fmt"
)

// Category is one of the five error classes AVA distinguishes for logging,
// retry and response-shape purposes.
type Category string

const (
	// CategoryTransientExternal covers generative-model RPC failures/timeouts
	// and repository write failures — recoverable locally via fallback or
	// bounded retry.
	CategoryTransientExternal Category = "transient_external"
	// CategoryPermanentInput covers malformed payloads and invalid status
	// transitions — surfaced to the caller, never retried.
	CategoryPermanentInput Category = "permanent_input"
	// CategoryConfigurationError covers missing required settings at boot —
	// fatal, aborts startup.
	CategoryConfigurationError Category = "configuration_error"
	// CategoryInvariantViolation covers out-of-range composites, bad weight
	// sums, non-monotonic thresholds — logged, clamped/defaulted, never
	// crashes the request.
	CategoryInvariantViolation Category = "invariant_violation"
	// CategoryRateLimited is not an error condition at all — it marks a
	// gate-suppressed or capped decision for metrics purposes.
	CategoryRateLimited Category = "rate_limited"
)

// Error is AVA's structured error type, carrying a Category alongside the
// wrapped cause so callers can branch with errors.As/errors.Is.
type Error struct {
	Category Category
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Category)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports category equality so errors.Is(err, apierr.TransientExternal)
// style sentinels work against wrapped *Error values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

// Sentinel category markers for errors.Is comparisons, e.g.:
//
//	if errors.Is(err, apierr.TransientExternal) { ... }
var (
	TransientExternal  = &Error{Category: CategoryTransientExternal}
	PermanentInput     = &Error{Category: CategoryPermanentInput}
	ConfigurationError = &Error{Category: CategoryConfigurationError}
	InvariantViolation = &Error{Category: CategoryInvariantViolation}
	RateLimited        = &Error{Category: CategoryRateLimited}
)

// Transient wraps err as a TransientExternal error attributed to op.
func Transient(op string, err error) *Error {
	return &Error{Category: CategoryTransientExternal, Op: op, Err: err}
}

// Permanent wraps err as a PermanentInput error attributed to op.
func Permanent(op string, err error) *Error {
	return &Error{Category: CategoryPermanentInput, Op: op, Err: err}
}

// Configuration wraps err as a ConfigurationError attributed to op.
func Configuration(op string, err error) *Error {
	return &Error{Category: CategoryConfigurationError, Op: op, Err: err}
}

// Invariant wraps err as an InvariantViolation attributed to op.
func Invariant(op string, err error) *Error {
	return &Error{Category: CategoryInvariantViolation, Op: op, Err: err}
}

// CategoryOf extracts the Category of err if it (or something it wraps) is
// an *Error, or "" otherwise.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}
