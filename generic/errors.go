/*
errors.go - Centralized error types for the ledger primitives

PURPOSE:
  All ledger-level error types in one place. The practice engine wraps these
  with the operation that failed.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Funds errors - The escrow cannot cover a payout
  3. Transfer errors - The host's currency primitive rejected a send

SEE ALSO:
  - ledger.go: Uses these errors
  - gp/errors.go: Domain errors for the practice state machine
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
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInsufficientFunds is returned when the escrow holds less than a payout.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransferFailed is returned when the currency primitive fails to send.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrInvalidAmount is returned for zero or negative amounts where a
	// positive one is required.
	ErrInvalidAmount = errors.New("invalid amount")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about an escrow shortage.
type InsufficientFundsError struct {
	Account   Address
	Available Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available %s, requested %s",
		e.Account, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// TransferError wraps a failure reported by the host's currency primitive.
type TransferError struct {
	To     Address
	Amount Amount
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %s to %s failed: %v", e.Amount, e.To, e.Err)
}

func (e *TransferError) Unwrap() []error {
	return []error{ErrTransferFailed, e.Err}
}
