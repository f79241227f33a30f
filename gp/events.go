package gp

import (
	"context"
	"time"

	"github.com/warp/gp-ledger/generic"
)

type EventType string

const (
	EventAppointmentBooked    EventType = "appointment.booked"
	EventAppointmentCancelled EventType = "appointment.cancelled"
)

// Event is published once per successful Book or CancelBooking, after the
// state change has committed.
type Event struct {
	Type      EventType
	BookingID BookingID
	Doctor    generic.Address
	Date      time.Time
}

// Notifier receives events. Delivery failures are logged by the Engine and
// never undo the committed operation.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error { return nil }
