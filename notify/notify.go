/*
Package notify provides in-process gp.Notifier and generic.Payments
implementations.

  Log:      writes events and payout orders to a zerolog logger. Used by the
            server when no message broker is configured.
  Recorder: keeps everything in memory and can be told to fail. Used by tests.

SEE ALSO:
  - mq: AMQP implementations of the same interfaces
*/
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// Log publishes to a logger.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) Notify(_ context.Context, ev gp.Event) error {
	l.log.Info().
		Str("event", string(ev.Type)).
		Uint64("booking_id", uint64(ev.BookingID)).
		Str("doctor", ev.Doctor.String()).
		Time("date", ev.Date).
		Msg("appointment event")
	return nil
}

// Send records a payout order. Settlement happens outside this process.
func (l *Log) Send(_ context.Context, to generic.Address, amount generic.Amount) error {
	l.log.Info().
		Str("to", to.String()).
		Str("amount", amount.String()).
		Msg("payout requested")
	return nil
}

// Payout is one Send call seen by a Recorder.
type Payout struct {
	To     generic.Address
	Amount generic.Amount
}

// Recorder records events and payouts.
type Recorder struct {
	mu      sync.Mutex
	events  []gp.Event
	payouts []Payout

	// FailSend, when set, is returned by Send and nothing is recorded.
	FailSend error
	// FailNotify, when set, is returned by Notify after recording the event.
	FailNotify error
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, ev gp.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.FailNotify
}

func (r *Recorder) Send(_ context.Context, to generic.Address, amount generic.Amount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSend != nil {
		return r.FailSend
	}
	r.payouts = append(r.payouts, Payout{To: to, Amount: amount})
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []gp.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gp.Event(nil), r.events...)
}

// Payouts returns a copy of the recorded payouts.
func (r *Recorder) Payouts() []Payout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payout(nil), r.payouts...)
}
