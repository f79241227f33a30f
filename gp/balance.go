/*
balance.go - Escrow and patient balances

PURPOSE:
  The practice holds every fee in an escrow account. Cancellation refunds are
  credited to the patient's internal balance and never pushed out; the patient
  pulls them with WithdrawPatientBalance.

WITHDRAWAL PROTOCOL (one transaction):
  1. Replay the patient's balance; zero fails with ErrZeroBalance
  2. Check the escrow can cover it (InsufficientFundsError otherwise)
  3. Append withdrawal (-patient) and payout (-escrow)
  4. Send the amount through the payments primitive

  If Send fails, step 3 is rolled back and the balance is untouched.

  Send runs before the store commits. If the commit itself fails after the
  payments primitive accepted the order, the money is gone but the ledger
  still shows the balance. Both rows of a withdrawal share one ReferenceID
  so payouts seen downstream can be matched against the ledger; a payout
  with no withdrawal row means the commit failed and the balance must be
  corrected by hand.

SEE ALSO:
  - generic/ledger.go: Balance replay
  - booking.go: Where fees and refunds are written
*/
package gp

import (
	"context"

	"github.com/google/uuid"
	"github.com/warp/gp-ledger/generic"
)

// tx builds a ledger transaction stamped with the caller and clock reading.
func (o *op) tx(account generic.Address, typ generic.TransactionType, delta generic.Amount, ref, reason, key string) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		Account:        account,
		Type:           typ,
		Delta:          delta,
		ReferenceID:    ref,
		Reason:         reason,
		IdempotencyKey: key,
		CreatedBy:      o.caller,
		CreatedAt:      o.now,
	}
}

// WithdrawPatientBalance pays the caller's whole balance out and returns
// the amount sent.
func (e *Engine) WithdrawPatientBalance(ctx context.Context, caller generic.Address) (generic.Amount, error) {
	var amount generic.Amount
	err := e.mutate(ctx, "WithdrawPatientBalance", caller, func(o *op) error {
		if _, err := o.requirePatient(ctx); err != nil {
			return err
		}
		balance, err := o.ledger.Balance(ctx, caller)
		if err != nil {
			return err
		}
		if !balance.IsPositive() {
			return ErrZeroBalance
		}
		held, err := o.ledger.Balance(ctx, generic.EscrowAccount)
		if err != nil {
			return err
		}
		if held.LessThan(balance) {
			return &generic.InsufficientFundsError{
				Account:   generic.EscrowAccount,
				Available: held,
				Requested: balance,
			}
		}

		ref := uuid.NewString()
		err = o.ledger.AppendBatch(ctx, []generic.Transaction{
			o.tx(caller, generic.TxWithdrawal, balance.Neg(), ref, "balance withdrawal", "withdrawal:"+ref),
			o.tx(generic.EscrowAccount, generic.TxPayout, balance.Neg(), ref, "payout to "+caller.String(), "payout:"+ref),
		})
		if err != nil {
			return err
		}
		if err := e.payments.Send(ctx, caller, balance); err != nil {
			return &generic.TransferError{To: caller, Amount: balance, Err: err}
		}
		amount = balance
		return nil
	})
	if err != nil {
		return generic.Amount{}, err
	}
	return amount, nil
}

// Fund adds currency to the escrow. Any caller may fund the practice.
func (e *Engine) Fund(ctx context.Context, caller generic.Address, amount generic.Amount) error {
	return e.mutate(ctx, "Fund", caller, func(o *op) error {
		if !amount.IsPositive() {
			return generic.ErrInvalidAmount
		}
		return o.ledger.Append(ctx, o.tx(generic.EscrowAccount, generic.TxFunding, amount, "", "funding", ""))
	})
}

// Holdings returns what the escrow currently holds. Admin-only.
func (e *Engine) Holdings(ctx context.Context, caller generic.Address) (generic.Amount, error) {
	var out generic.Amount
	err := e.query(ctx, "Holdings", caller, func(o *op) error {
		if err := o.requireAdmin(ctx); err != nil {
			return err
		}
		var err error
		out, err = o.ledger.Balance(ctx, generic.EscrowAccount)
		return err
	})
	return out, err
}

// Statement returns a patient's ledger entries, oldest first. Allowed for the
// patient and for admins.
func (e *Engine) Statement(ctx context.Context, caller, patient generic.Address) ([]generic.Transaction, error) {
	var out []generic.Transaction
	err := e.query(ctx, "Statement", caller, func(o *op) error {
		if caller != patient {
			r, err := o.rolesOf(ctx, caller)
			if err != nil {
				return err
			}
			if !r.isAdmin() {
				return ErrNotAllowed
			}
		}
		var err error
		out, err = o.ledger.Transactions(ctx, patient)
		return err
	})
	return nonNil(out), err
}
