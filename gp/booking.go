/*
booking.go - Booking lifecycle

PURPOSE:
  Slots are created Available by an admin, reserved by a patient paying the
  exact fee, and closed by the doctor (Visited / NoShowUp) or by a
  cancellation that refunds the patient and reopens an identical slot.

STATE MACHINE:
  Available --Book--------------> Booked
  Booked    --MarkVisited-------> Visited     (terminal)
  Booked    --MarkNoShowUp------> NoShowUp    (terminal)
  Booked    --CancelBooking-----> Cancelled   (terminal) + new Available slot

NOTES:
  A cancellation appends one "Refunded amount" note for the patient. A
  cancellation that refunds nothing (under two hours notice) writes neither
  a note nor a ledger entry, so "one note per cancellation" only holds for
  positive refunds.

TIME:
  Book and CancelBooking require the appointment to be strictly in the
  future. Doctor transitions are not time-checked.

SEE ALSO:
  - refund.go: How much a cancellation credits back
  - access.go: Who may see what
*/
package gp

import (
	"context"
	"fmt"

	"github.com/warp/gp-ledger/generic"
)

// AddBooking creates an Available slot. Admin-only. An empty DateKey is
// derived from the date.
func (e *Engine) AddBooking(ctx context.Context, caller generic.Address, slot Slot) (BookingID, error) {
	var id BookingID
	err := e.mutate(ctx, "AddBooking", caller, func(o *op) error {
		if err := o.requireAdmin(ctx); err != nil {
			return err
		}
		if slot.Fee.IsNegative() {
			return generic.ErrInvalidAmount
		}
		if slot.DateKey == "" {
			slot.DateKey = generic.DateKey(slot.Date)
		}
		var err error
		id, err = o.InsertBooking(ctx, Booking{
			AppointmentDate:    slot.Date,
			AppointmentDateKey: slot.DateKey,
			DoctorAddress:      slot.Doctor,
			Fee:                slot.Fee,
			Status:             StatusAvailable,
			Active:             true,
		})
		return err
	})
	return id, err
}

// Book reserves an Available slot for the calling patient. paid must equal
// the slot fee exactly; it is retained in escrow.
func (e *Engine) Book(ctx context.Context, caller generic.Address, id BookingID, note string, paid generic.Amount) error {
	return e.mutate(ctx, "Book", caller, func(o *op) error {
		if _, err := o.requirePatient(ctx); err != nil {
			return err
		}
		b, err := o.requireBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != StatusAvailable || !o.now.Before(b.AppointmentDate) {
			return ErrNotAvailable
		}
		if !paid.Equal(b.Fee) {
			return ErrInvalidFeePaid
		}

		b.PatientAddress = caller
		b.Status = StatusBooked
		if err := o.UpdateBooking(ctx, *b); err != nil {
			return err
		}
		if _, err := o.appendNote(ctx, caller, note); err != nil {
			return err
		}
		if b.Fee.IsPositive() {
			if err := o.ledger.Append(ctx, o.tx(generic.EscrowAccount, generic.TxFee, b.Fee, fmt.Sprint(b.ID),
				"booking fee", fmt.Sprintf("fee:%d", b.ID))); err != nil {
				return err
			}
		}
		o.emit(EventAppointmentBooked, *b)
		return nil
	})
}

// CancelBooking cancels a Booked appointment that has not happened yet,
// credits the refund to the patient's balance and reopens the slot. The
// caller must be the booking's patient or an admin. Returns the refund.
func (e *Engine) CancelBooking(ctx context.Context, caller generic.Address, id BookingID) (generic.Amount, error) {
	var refund generic.Amount
	err := e.mutate(ctx, "CancelBooking", caller, func(o *op) error {
		b, err := o.requireBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != StatusBooked || !o.now.Before(b.AppointmentDate) {
			return ErrNotAvailable
		}
		r, err := o.rolesOf(ctx, caller)
		if err != nil {
			return err
		}
		byAdmin := r.isAdmin()
		if !byAdmin && b.PatientAddress != caller {
			return ErrNotAllowed
		}

		b.Status = StatusCancelled
		if err := o.UpdateBooking(ctx, *b); err != nil {
			return err
		}
		if _, err := o.InsertBooking(ctx, Booking{
			AppointmentDate:    b.AppointmentDate,
			AppointmentDateKey: b.AppointmentDateKey,
			DoctorAddress:      b.DoctorAddress,
			Fee:                b.Fee,
			Status:             StatusAvailable,
			Active:             true,
		}); err != nil {
			return err
		}

		refund = e.refunds.Refund(b.Fee, byAdmin, b.AppointmentDate.Sub(o.now))
		if refund.IsPositive() {
			err := o.ledger.Append(ctx, o.tx(b.PatientAddress, generic.TxRefund, refund, fmt.Sprint(b.ID),
				"cancellation refund", fmt.Sprintf("refund:%d", b.ID)))
			if err != nil {
				return err
			}
			if _, err := o.appendNote(ctx, b.PatientAddress, refundNote(refund)); err != nil {
				return err
			}
		}
		o.emit(EventAppointmentCancelled, *b)
		return nil
	})
	if err != nil {
		return generic.Amount{}, err
	}
	return refund, nil
}

// MarkBookingAsNoShowUp closes a Booked appointment the patient missed.
// Only the booking's doctor may call it.
func (e *Engine) MarkBookingAsNoShowUp(ctx context.Context, caller generic.Address, id BookingID) error {
	return e.mutate(ctx, "MarkBookingAsNoShowUp", caller, func(o *op) error {
		b, err := o.requireBookingDoctor(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != StatusBooked {
			return ErrNotAvailable
		}
		b.Status = StatusNoShowUp
		return o.UpdateBooking(ctx, *b)
	})
}

// MarkBookingAsVisited closes a Booked appointment and records the doctor's
// note on the patient.
func (e *Engine) MarkBookingAsVisited(ctx context.Context, caller generic.Address, id BookingID, note string) error {
	return e.mutate(ctx, "MarkBookingAsVisited", caller, func(o *op) error {
		b, err := o.requireBookingDoctor(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != StatusBooked {
			return ErrNotAvailable
		}
		b.Status = StatusVisited
		if err := o.UpdateBooking(ctx, *b); err != nil {
			return err
		}
		_, err = o.appendNote(ctx, b.PatientAddress, note)
		return err
	})
}

// Bookings lists the booking ids for a date key in creation order. Public.
func (e *Engine) Bookings(ctx context.Context, dateKey string) ([]BookingID, error) {
	var out []BookingID
	err := e.query(ctx, "GetBookings", generic.NoAddress, func(o *op) error {
		var err error
		out, err = o.ListBookings(ctx, dateKey)
		return err
	})
	return nonNil(out), err
}

// Booking returns a booking to any registered caller, masked unless the
// caller is an admin or the booking's doctor or patient.
func (e *Engine) Booking(ctx context.Context, caller generic.Address, id BookingID) (Booking, error) {
	var out Booking
	err := e.query(ctx, "GetBooking", caller, func(o *op) error {
		r, err := o.rolesOf(ctx, caller)
		if err != nil {
			return err
		}
		if !r.registered() {
			return ErrNotRegistered
		}
		b, err := o.requireBooking(ctx, id)
		if err != nil {
			return err
		}
		out = *b
		if !canSeeBooking(caller, r, out) {
			out = maskBooking(out)
		}
		return nil
	})
	return out, err
}
