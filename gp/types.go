/*
Package gp implements the booking and escrow state machine of a GP practice.

PURPOSE:
  Administrators publish appointment slots, patients reserve them by paying a
  fixed fee, doctors record the outcome. Cancellations reopen the slot as a new
  booking and credit a time-dependent refund to the patient's escrow balance,
  which the patient later withdraws.

KEY CONCEPTS IN THIS FILE (types.go):
  - Admin, Doctor, Patient: role records keyed by address
  - Booking: an appointment slot and its lifecycle status
  - Note: an immutable annotation attached to a patient

LIFECYCLE:
  Available --Book--------------> Booked
  Booked    --MarkVisited-------> Visited    (terminal)
  Booked    --MarkNoShowUp------> NoShowUp   (terminal)
  Booked    --CancelBooking-----> Cancelled  (terminal) + new Available booking

SEE ALSO:
  - engine.go: Engine construction and the operation envelope
  - access.go: Who may call what, and what they may see
  - refund.go: Refund tiers
*/
package gp

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/gp-ledger/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookingID uint64
type NoteID uint64

// =============================================================================
// ROLE RECORDS
// =============================================================================

type Admin struct {
	Address generic.Address
	Name    string
	Active  bool
}

type Doctor struct {
	Address   generic.Address
	Name      string
	Specialty string
	Active    bool
}

// Patient is a registered patient. Balance is filled in from the ledger when
// the record is read; stores never persist it.
type Patient struct {
	Address     generic.Address
	Name        string
	DateOfBirth time.Time
	BirthSex    Sex
	Balance     generic.Amount
	Active      bool
}

// PatientProfile is what a registration supplies.
type PatientProfile struct {
	Name        string
	DateOfBirth time.Time
	BirthSex    Sex
}

type Sex int

const (
	SexMale Sex = iota
	SexFemale
)

var sexNames = []string{"male", "female"}

func (s Sex) String() string {
	if s < 0 || int(s) >= len(sexNames) {
		return fmt.Sprintf("sex(%d)", int(s))
	}
	return sexNames[s]
}

func (s Sex) Valid() bool { return s == SexMale || s == SexFemale }

func (s Sex) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Sex) UnmarshalText(b []byte) error {
	for i, n := range sexNames {
		if strings.EqualFold(n, string(b)) {
			*s = Sex(i)
			return nil
		}
	}
	return fmt.Errorf("unknown sex %q", string(b))
}

// =============================================================================
// BOOKING
// =============================================================================

type BookingStatus int

const (
	StatusAvailable BookingStatus = iota
	StatusBooked
	StatusVisited
	StatusNoShowUp
	StatusCancelled
)

var statusNames = []string{"available", "booked", "visited", "no_show_up", "cancelled"}

func (s BookingStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// HasPatient reports whether a booking in this status is linked to a patient.
func (s BookingStatus) HasPatient() bool { return s != StatusAvailable }

func (s BookingStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *BookingStatus) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = BookingStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown booking status %q", string(b))
}

type Booking struct {
	ID                 BookingID
	AppointmentDate    time.Time
	AppointmentDateKey string
	DoctorAddress      generic.Address
	PatientAddress     generic.Address
	Fee                generic.Amount
	Status             BookingStatus
	Active             bool
}

// Slot is what an admin supplies to publish a booking. An empty DateKey is
// derived from Date.
type Slot struct {
	Date    time.Time
	DateKey string
	Doctor  generic.Address
	Fee     generic.Amount
}

// =============================================================================
// NOTE
// =============================================================================

type Note struct {
	ID             NoteID
	SubjectPatient generic.Address
	AddedBy        generic.Address
	Timestamp      time.Time
	Text           string
}

const noteRegistered = "Patient registered"

func refundNote(amount generic.Amount) string { return "Refunded amount: " + amount.String() }
