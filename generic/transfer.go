package generic

import "context"

// Payments is the host's currency transfer primitive for outgoing funds.
// Incoming funds arrive with the call that carries them (a booking fee or a
// funding transfer) and need no primitive.
//
// A Send error is transaction-fatal: the engine calls Send inside the store
// transaction and rolls back every ledger write when it fails.
type Payments interface {
	Send(ctx context.Context, to Address, amount Amount) error
}

// PaymentsFunc adapts a function to Payments.
type PaymentsFunc func(ctx context.Context, to Address, amount Amount) error

func (f PaymentsFunc) Send(ctx context.Context, to Address, amount Amount) error {
	return f(ctx, to, amount)
}
