/*
Package generic provides the money and ledger primitives the practice engine
is built on.

PURPOSE:
  This package knows nothing about doctors, patients or appointments. It holds
  the domain-agnostic pieces: principal addresses, currency amounts, the
  append-only transaction log, the clock, and the currency transfer primitive
  supplied by the host.

KEY CONCEPTS IN THIS FILE (types.go):
  - Address: An opaque, unforgeable principal id supplied by the host
  - Amount: A non-fractional quantity of the native currency (smallest unit)
  - Transaction: An immutable ledger entry recording a balance change

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified or deleted
  2. Precision: Uses decimal.Decimal, amounts are always whole minor units
  3. Type Safety: Addresses and transaction ids are distinct types
  4. Auditability: Every transaction has type, reference, author and idempotency key

USAGE:
  fee := generic.NewAmount(1_000_000_000_000_000)
  tx := generic.Transaction{
      Account: generic.EscrowAccount,
      Delta:   fee,
      Type:    generic.TxFee,
  }

SEE ALSO:
  - ledger.go: Balance calculation from transactions
  - store.go: Transaction persistence interface
  - transfer.go: Currency transfer primitive
*/
package generic

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ADDRESS - Principal identity
// =============================================================================

// Address identifies a principal (admin, doctor, patient or anybody else).
// The zero Address is the empty identity used when a field is redacted.
type Address string

// NoAddress is the empty identity.
const NoAddress Address = ""

// EscrowAccount is the ledger account holding the practice's currency:
// reservation fees, funding, and the source of every payout.
const EscrowAccount Address = "@escrow"

func (a Address) IsZero() bool { return a == NoAddress }
func (a Address) String() string { return string(a) }

// =============================================================================
// AMOUNT - Quantity of native currency in its smallest unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
}

func NewAmount(v int64) Amount { return Amount{Value: decimal.NewFromInt(v)} }

// ParseAmount parses a whole, non-negative number of minor units.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return Amount{}, fmt.Errorf("invalid amount %q: must be a whole non-negative number", s)
	}
	return Amount{Value: d}, nil
}

// ParseSignedAmount parses a whole number of minor units, which may be
// negative. Ledger deltas use it.
func ParseSignedAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return Amount{}, fmt.Errorf("invalid amount %q: must be a whole number", s)
	}
	return Amount{Value: d}, nil
}

func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsZero() bool { return a.Value.IsZero() }
func (a Amount) IsPositive() bool { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool { return a.Value.IsNegative() }
func (a Amount) Equal(b Amount) bool { return a.Value.Equal(b.Value) }
func (a Amount) LessThan(b Amount) bool { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) String() string { return a.Value.String() }

// Percent returns pct percent of a, truncated towards zero to a whole unit.
func (a Amount) Percent(pct int64) Amount {
	return Amount{Value: a.Value.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100)).Truncate(0)}
}

// MarshalJSON encodes the amount as a decimal string so large values survive
// JavaScript clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value.String())
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	if !d.Equal(d.Truncate(0)) {
		return fmt.Errorf("invalid amount %s: must be a whole number", string(b))
	}
	a.Value = d
	return nil
}

// =============================================================================
// TRANSACTION - Atomic change to an account balance
// =============================================================================

type TransactionID string

type TransactionType string

const (
	TxFee        TransactionType = "fee"        // Reservation fee received into escrow
	TxFunding    TransactionType = "funding"    // Currency sent to the escrow without a booking
	TxRefund     TransactionType = "refund"     // Cancellation credit to a patient balance
	TxWithdrawal TransactionType = "withdrawal" // Patient balance drained by withdrawal
	TxPayout     TransactionType = "payout"     // Currency leaving escrow, paired with a withdrawal
)

type Transaction struct {
	ID             TransactionID
	Account        Address
	Type           TransactionType
	Delta          Amount
	ReferenceID    string
	Reason         string
	IdempotencyKey string

	// Audit fields
	CreatedBy Address
	CreatedAt time.Time
}
