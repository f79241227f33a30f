/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the source of truth for every balance: patient refund credit
  and escrow holdings alike. Balance is always computed by replaying
  transactions - there's no separate "balance" field that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

EXAMPLE FLOW:
  1. Patient books, pays 1000:             escrow   fee      +1000
  2. Admin cancels, 110% refund:           patient  refund   +1100
  3. Patient withdraws:                    patient  withdraw -1100
                                           escrow   payout   -1100

  Patient ledger: [+1100, -1100] = 0
  Escrow ledger:  [+1000, -1100] = -100  (rejected unless funded first)

SEE ALSO:
  - store.go: Low-level persistence interface
  - gp/balance.go: Withdrawal protocol built on this ledger
*/
package generic

import "context"

// Ledger is the source of truth for all balance changes.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for an account, oldest first.
	Transactions(ctx context.Context, account Address) ([]Transaction, error)

	// Balance replays the account's transactions.
	Balance(ctx context.Context, account Address) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, account Address) ([]Transaction, error) {
	return l.Store.Load(ctx, account)
}

func (l *DefaultLedger) Balance(ctx context.Context, account Address) (Amount, error) {
	txs, err := l.Store.Load(ctx, account)
	if err != nil {
		return Amount{}, err
	}
	return Sum(txs), nil
}

// Sum adds up the deltas of txs.
func Sum(txs []Transaction) Amount {
	var total Amount
	for _, tx := range txs {
		total = total.Add(tx.Delta)
	}
	return total
}
