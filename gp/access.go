/*
access.go - Access and visibility policy

PURPOSE:
  Cross-cutting rules evaluated at the top of every operation: which role the
  caller must hold, and what a caller without a direct relationship to a
  booking is allowed to see.

ROLES:
  A caller may hold several roles at once (an admin can also be a patient).
  Only active records count.

MASKING:
  getBooking returns the record unmodified to an admin, the booking's doctor
  and the booking's patient. Everyone else sees:
    - PatientAddress = empty identity
    - Visited / NoShowUp / Cancelled reported as Booked

SEE ALSO:
  - errors.go: The errors these guards return
*/
package gp

import (
	"context"

	"github.com/warp/gp-ledger/generic"
)

// roles is what the registries know about one address.
type roles struct {
	admin   *Admin
	doctor  *Doctor
	patient *Patient
}

func (r roles) isAdmin() bool { return r.admin != nil && r.admin.Active }
func (r roles) isDoctor() bool { return r.doctor != nil && r.doctor.Active }
func (r roles) isPatient() bool { return r.patient != nil && r.patient.Active }

func (r roles) registered() bool { return r.isAdmin() || r.isDoctor() || r.isPatient() }

func (o *op) rolesOf(ctx context.Context, addr generic.Address) (roles, error) {
	var r roles
	var err error
	if r.admin, err = o.GetAdmin(ctx, addr); err != nil {
		return roles{}, err
	}
	if r.doctor, err = o.GetDoctor(ctx, addr); err != nil {
		return roles{}, err
	}
	if r.patient, err = o.GetPatient(ctx, addr); err != nil {
		return roles{}, err
	}
	return r, nil
}

// =============================================================================
// GUARDS
// =============================================================================

func (o *op) requireAdmin(ctx context.Context) error {
	a, err := o.GetAdmin(ctx, o.caller)
	if err != nil {
		return err
	}
	if a == nil || !a.Active {
		return ErrNotAnAdmin
	}
	return nil
}

func (o *op) requirePatient(ctx context.Context) (*Patient, error) {
	p, err := o.GetPatient(ctx, o.caller)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Active {
		return nil, ErrNotRegistered
	}
	return p, nil
}

// requireBooking loads a booking or fails with ErrInvalidBooking.
func (o *op) requireBooking(ctx context.Context, id BookingID) (*Booking, error) {
	b, err := o.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrInvalidBooking
	}
	return b, nil
}

// requireBookingDoctor loads a booking and checks the caller is its doctor.
// Existence is checked first.
func (o *op) requireBookingDoctor(ctx context.Context, id BookingID) (*Booking, error) {
	b, err := o.requireBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.DoctorAddress != o.caller {
		return nil, ErrNotTheDoctor
	}
	d, err := o.GetDoctor(ctx, o.caller)
	if err != nil {
		return nil, err
	}
	if d != nil && !d.Active {
		return nil, ErrNotTheDoctor
	}
	return b, nil
}

// =============================================================================
// VISIBILITY
// =============================================================================

// canSeeBooking reports whether viewer may see the booking unmasked.
func canSeeBooking(viewer generic.Address, r roles, b Booking) bool {
	if r.isAdmin() {
		return true
	}
	if b.DoctorAddress == viewer {
		return true
	}
	return b.Status.HasPatient() && b.PatientAddress == viewer
}

// maskBooking hides the patient link and the medical outcome.
func maskBooking(b Booking) Booking {
	b.PatientAddress = generic.NoAddress
	switch b.Status {
	case StatusVisited, StatusNoShowUp, StatusCancelled:
		b.Status = StatusBooked
	}
	return b
}

// canSeePatient: an admin, any doctor, or the patient themself.
func canSeePatient(viewer generic.Address, r roles, patient generic.Address) bool {
	return r.isAdmin() || r.isDoctor() || viewer == patient
}

// canReadNote: the author or the subject of the note.
func canReadNote(viewer generic.Address, n Note) bool {
	return viewer == n.AddedBy || viewer == n.SubjectPatient
}
