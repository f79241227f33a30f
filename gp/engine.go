/*
engine.go - The practice state machine

PURPOSE:
  Engine owns the practice state (through its TxStore) and exposes every
  operation: registry, bookings, notes and the escrow ledger. It is the only
  writer; construct one per store.

OPERATION ENVELOPE:
  Every operation runs under one mutex, reads the clock once, and (for
  mutations) executes inside a single store transaction:

    1. resolve the caller's roles
    2. authorize / redact (access.go)
    3. touch bookings, ledger and notes
    4. commit, then publish events

  If any step fails the transaction is rolled back and the named error is
  returned scoped to the operation (*OpError). Events are only published
  after a successful commit.

CLOCK:
  Readings are clamped so that time never moves backwards between
  operations, even if the host clock does.

SEE ALSO:
  - store.go: TxStore contract
  - access.go: Guards and visibility masking
*/
package gp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/gp-ledger/generic"
)

// Options configures a new Engine.
type Options struct {
	// Name of the practice.
	Name string

	// Admin is the bootstrap admin registered when the store has no admins.
	Admin     generic.Address
	AdminName string

	// InitialFunding is credited to the escrow when the practice is created.
	InitialFunding generic.Amount

	Clock    generic.Clock
	Payments generic.Payments
	Notifier Notifier
	Refunds  *RefundPolicy
	Logger   *zerolog.Logger
}

type Engine struct {
	mu sync.Mutex

	name     string
	store    TxStore
	clock    generic.Clock
	payments generic.Payments
	notifier Notifier
	refunds  RefundPolicy
	log      zerolog.Logger

	last time.Time
}

// New creates the engine and registers the bootstrap admin on an empty store.
func New(ctx context.Context, store TxStore, opts Options) (*Engine, error) {
	e := &Engine{
		name:     opts.Name,
		store:    store,
		clock:    opts.Clock,
		payments: opts.Payments,
		notifier: opts.Notifier,
		refunds:  DefaultRefundPolicy(),
		log:      zerolog.Nop(),
	}
	if e.clock == nil {
		e.clock = generic.SystemClock{}
	}
	if e.payments == nil {
		e.payments = generic.PaymentsFunc(func(context.Context, generic.Address, generic.Amount) error {
			return fmt.Errorf("no payments primitive configured")
		})
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if opts.Logger != nil {
		e.log = opts.Logger.With().Str("component", "gp").Logger()
	}
	if opts.Refunds != nil {
		if err := opts.Refunds.Validate(); err != nil {
			return nil, fmt.Errorf("invalid refund policy: %w", err)
		}
		e.refunds = *opts.Refunds
	}

	if opts.Admin.IsZero() {
		return nil, fmt.Errorf("bootstrap admin address is required")
	}
	err := store.WithTx(ctx, func(s Store) error {
		admins, err := s.ListAdmins(ctx)
		if err != nil {
			return err
		}
		if len(admins) > 0 {
			return nil
		}
		e.log.Info().Str("admin", opts.Admin.String()).Msg("bootstrapping practice")
		if err := s.InsertAdmin(ctx, Admin{Address: opts.Admin, Name: opts.AdminName, Active: true}); err != nil {
			return err
		}
		if !opts.InitialFunding.IsPositive() {
			return nil
		}
		o := &op{Store: s, ledger: generic.NewLedger(s), caller: opts.Admin, now: e.now()}
		return o.ledger.Append(ctx, o.tx(generic.EscrowAccount, generic.TxFunding, opts.InitialFunding,
			"", "initial funding", "funding:bootstrap"))
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return e, nil
}

// Name returns the practice name.
func (e *Engine) Name() string { return e.name }

// Now reads the engine's clock.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// RefundPolicy returns the policy applied to cancellations.
func (e *Engine) RefundPolicy() RefundPolicy { return e.refunds }

// =============================================================================
// OPERATION ENVELOPE
// =============================================================================

// op is the view an operation gets of the practice: a store (transactional
// for mutations), the ledger over it, the caller, and a single clock reading.
type op struct {
	Store
	ledger *generic.DefaultLedger
	caller generic.Address
	now    time.Time
	events []Event
}

func (e *Engine) now() time.Time {
	t := e.clock.Now()
	if t.Before(e.last) {
		t = e.last
	}
	e.last = t
	return t
}

// mutate runs fn atomically and publishes the events it emitted once committed.
func (e *Engine) mutate(ctx context.Context, name string, caller generic.Address, fn func(o *op) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var events []Event
	err := e.store.WithTx(ctx, func(s Store) error {
		o := &op{Store: s, ledger: generic.NewLedger(s), caller: caller, now: now}
		if err := fn(o); err != nil {
			return err
		}
		events = o.events
		return nil
	})
	if err != nil {
		e.log.Debug().Err(err).Str("op", name).Str("caller", caller.String()).Msg("rejected")
		return opError(name, err)
	}
	e.log.Debug().Str("op", name).Str("caller", caller.String()).Msg("committed")

	for _, ev := range events {
		if nerr := e.notifier.Notify(ctx, ev); nerr != nil {
			e.log.Error().Err(nerr).
				Str("event", string(ev.Type)).
				Uint64("booking_id", uint64(ev.BookingID)).
				Msg("event delivery failed")
		}
	}
	return nil
}

// query runs fn against the committed state.
func (e *Engine) query(ctx context.Context, name string, caller generic.Address, fn func(o *op) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o := &op{Store: e.store, ledger: generic.NewLedger(e.store), caller: caller, now: e.now()}
	return opError(name, fn(o))
}

func (o *op) emit(t EventType, b Booking) {
	o.events = append(o.events, Event{Type: t, BookingID: b.ID, Doctor: b.DoctorAddress, Date: b.AppointmentDate})
}
