/*
errors.go - Named failures of the practice state machine

PURPOSE:
  Every rejected operation surfaces one of these reasons so callers can tell
  "booking doesn't exist" apart from "booking exists but is taken". Each
  failure aborts the whole operation; nothing is partially applied.

USAGE:
  Errors returned by the Engine are *OpError values scoping the reason to the
  operation ("CancelBooking: not allowed"). Match the reason with errors.Is:

    if errors.Is(err, gp.ErrNotAvailable) {
        // slot taken or in the past
    }

SEE ALSO:
  - access.go: Guards producing the authorization errors
  - generic/errors.go: Ledger errors (insufficient funds, transfer failed)
*/
package gp

import (
	"errors"
	"fmt"

	"github.com/warp/gp-ledger/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotAnAdmin: the caller must be an active admin.
	ErrNotAnAdmin = errors.New("not an admin")

	// ErrNotTheDoctor: the caller is not the doctor assigned to the booking.
	ErrNotTheDoctor = errors.New("not the doctor")

	// ErrNotRegistered: the caller has no (active) role required by the operation.
	ErrNotRegistered = errors.New("not registered")

	// ErrAlreadyRegistered: a record already exists for the address.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrInvalidBooking: no booking has the given id.
	ErrInvalidBooking = errors.New("invalid booking")

	// ErrNotAvailable: the booking is in the wrong state or its date has passed.
	ErrNotAvailable = errors.New("not available")

	// ErrInvalidFeePaid: the payment does not equal the booking fee.
	ErrInvalidFeePaid = errors.New("invalid fee paid")

	// ErrNotAllowed: the caller may not see or act on the record.
	ErrNotAllowed = errors.New("not allowed")

	// ErrZeroBalance: there is nothing to withdraw.
	ErrZeroBalance = errors.New("zero balance")

	// ErrGetNoteNotAllowed: the caller is neither the author nor the subject of the note.
	ErrGetNoteNotAllowed = fmt.Errorf("get note: %w", ErrNotAllowed)

	// ErrInvalidNote: the note does not exist.
	ErrInvalidNote = errors.New("invalid note")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// OpError scopes a failure to the operation that produced it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsAuthorization reports whether err is a role or visibility denial.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotAnAdmin) ||
		errors.Is(err, ErrNotTheDoctor) ||
		errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrNotAllowed)
}

// IsNotFound reports whether err names a missing booking or note.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvalidBooking) || errors.Is(err, ErrInvalidNote)
}

// IsConflict reports whether err is caused by the current state of a record.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNotAvailable) ||
		errors.Is(err, ErrAlreadyRegistered) ||
		errors.Is(err, generic.ErrInsufficientFunds) ||
		errors.Is(err, generic.ErrDuplicateIdempotencyKey)
}

// IsInvalidInput reports whether err is caused by the values the caller sent.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidFeePaid) ||
		errors.Is(err, ErrZeroBalance) ||
		errors.Is(err, generic.ErrInvalidAmount)
}
