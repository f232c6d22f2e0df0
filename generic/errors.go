/*
errors.go - Centralized error types for the deployment engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain and store packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. NotFound  - an id is absent from the supplied collection. Engine
                 operations treat this as a no-op and report it; never fatal.
  2. Invalid   - malformed input (dates, statuses, reversed periods).
  3. Ambiguous - resolved by documented conventions, never returned as errors.
  4. Violation - eligibility/compliance findings. Always returned as data
                 (warnings, conflicts), never as errors.

USAGE:
  if generic.IsNotFound(err) {
      // report, do not fail
  }

SEE ALSO:
  - workforce/scheduler.go: RemoveAssignment reports ErrAssignmentNotFound
  - api/handlers.go: maps categories to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOperativeNotFound is returned when a referenced operative doesn't exist.
	ErrOperativeNotFound = errors.New("operative not found")

	// ErrSiteNotFound is returned when a referenced site doesn't exist.
	ErrSiteNotFound = errors.New("site not found")

	// ErrClientNotFound is returned when a referenced client doesn't exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrAssignmentNotFound is returned when removing or updating an
	// assignment id that is not in the collection.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrCertificateNotFound is returned when editing a certificate id the
	// operative does not hold.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrMissingPeriod is returned when neither the site nor the caller
	// supplies a complete date range.
	ErrMissingPeriod = errors.New("missing period: start and end are required")

	// ErrInvalidDate is returned when a date string cannot be parsed and the
	// caller asked for strict parsing.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidStatus is returned for an assignment status outside the
	// known set.
	ErrInvalidStatus = errors.New("invalid assignment status")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the kind and id that could not be resolved.
type NotFoundError struct {
	Kind string // "operative", "site", "client", "assignment", "certificate"
	ID   string
	err  error
}

func NewNotFound(sentinel error, kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id, err: sentinel}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.err
}

// InvalidDateError names the field that failed to parse.
type InvalidDateError struct {
	Field string
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date for %s: %q (use YYYY-MM-DD)", e.Field, e.Value)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrInvalidDate
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOperativeNotFound) ||
		errors.Is(err, ErrSiteNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrCertificateNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrMissingPeriod) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidStatus)
}
