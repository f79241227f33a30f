package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// state is the unlocked store. Memory guards it; WithTx hands a clone of it
// to the transaction.
type state struct {
	admins         map[generic.Address]gp.Admin
	adminOrder     []generic.Address
	doctors        map[generic.Address]gp.Doctor
	doctorOrder    []generic.Address
	patients       map[generic.Address]gp.Patient
	patientOrder   []generic.Address
	bookings       []gp.Booking
	bookingsByDay  map[string][]gp.BookingID
	notes          []gp.Note
	notesByPatient map[generic.Address][]gp.NoteID
	transactions   map[generic.Address][]generic.Transaction
	idempotency    map[string]bool
}

func newState() *state {
	return &state{
		admins:         make(map[generic.Address]gp.Admin),
		doctors:        make(map[generic.Address]gp.Doctor),
		patients:       make(map[generic.Address]gp.Patient),
		bookingsByDay:  make(map[string][]gp.BookingID),
		notesByPatient: make(map[generic.Address][]gp.NoteID),
		transactions:   make(map[generic.Address][]generic.Transaction),
		idempotency:    make(map[string]bool),
	}
}

// clone copies every container. Records are values, so a shallow copy of
// each map and slice is enough.
func (s *state) clone() *state {
	c := &state{
		admins:         maps.Clone(s.admins),
		adminOrder:     slices.Clone(s.adminOrder),
		doctors:        maps.Clone(s.doctors),
		doctorOrder:    slices.Clone(s.doctorOrder),
		patients:       maps.Clone(s.patients),
		patientOrder:   slices.Clone(s.patientOrder),
		bookings:       slices.Clone(s.bookings),
		bookingsByDay:  make(map[string][]gp.BookingID, len(s.bookingsByDay)),
		notes:          slices.Clone(s.notes),
		notesByPatient: make(map[generic.Address][]gp.NoteID, len(s.notesByPatient)),
		transactions:   make(map[generic.Address][]generic.Transaction, len(s.transactions)),
		idempotency:    maps.Clone(s.idempotency),
	}
	for k, v := range s.bookingsByDay {
		c.bookingsByDay[k] = slices.Clone(v)
	}
	for k, v := range s.notesByPatient {
		c.notesByPatient[k] = slices.Clone(v)
	}
	for k, v := range s.transactions {
		c.transactions[k] = slices.Clone(v)
	}
	return c
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *state) Append(_ context.Context, tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && s.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	s.appendTx(tx)
	return nil
}

func (s *state) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	// Check all idempotency keys first (atomic check)
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if s.idempotency[tx.IdempotencyKey] || seen[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}
	for _, tx := range txs {
		s.appendTx(tx)
	}
	return nil
}

func (s *state) appendTx(tx generic.Transaction) {
	s.transactions[tx.Account] = append(s.transactions[tx.Account], tx)
	if tx.IdempotencyKey != "" {
		s.idempotency[tx.IdempotencyKey] = true
	}
}

func (s *state) Load(_ context.Context, account generic.Address) ([]generic.Transaction, error) {
	return slices.Clone(s.transactions[account]), nil
}

func (s *state) Exists(_ context.Context, key string) (bool, error) {
	return s.idempotency[key], nil
}

// =============================================================================
// REGISTRIES
// =============================================================================

func (s *state) InsertAdmin(_ context.Context, a gp.Admin) error {
	if _, ok := s.admins[a.Address]; ok {
		return fmt.Errorf("admin %s: %w", a.Address, gp.ErrAlreadyRegistered)
	}
	s.admins[a.Address] = a
	s.adminOrder = append(s.adminOrder, a.Address)
	return nil
}

func (s *state) GetAdmin(_ context.Context, addr generic.Address) (*gp.Admin, error) {
	a, ok := s.admins[addr]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *state) ListAdmins(_ context.Context) ([]generic.Address, error) {
	return slices.Clone(s.adminOrder), nil
}

func (s *state) InsertDoctor(_ context.Context, d gp.Doctor) error {
	if _, ok := s.doctors[d.Address]; ok {
		return fmt.Errorf("doctor %s: %w", d.Address, gp.ErrAlreadyRegistered)
	}
	s.doctors[d.Address] = d
	s.doctorOrder = append(s.doctorOrder, d.Address)
	return nil
}

func (s *state) GetDoctor(_ context.Context, addr generic.Address) (*gp.Doctor, error) {
	d, ok := s.doctors[addr]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *state) ListDoctors(_ context.Context) ([]generic.Address, error) {
	return slices.Clone(s.doctorOrder), nil
}

func (s *state) InsertPatient(_ context.Context, p gp.Patient) error {
	if _, ok := s.patients[p.Address]; ok {
		return fmt.Errorf("patient %s: %w", p.Address, gp.ErrAlreadyRegistered)
	}
	p.Balance = generic.Amount{}
	s.patients[p.Address] = p
	s.patientOrder = append(s.patientOrder, p.Address)
	return nil
}

func (s *state) GetPatient(_ context.Context, addr generic.Address) (*gp.Patient, error) {
	p, ok := s.patients[addr]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *state) ListPatients(_ context.Context) ([]generic.Address, error) {
	return slices.Clone(s.patientOrder), nil
}

// =============================================================================
// BOOKINGS
// =============================================================================

func (s *state) InsertBooking(_ context.Context, b gp.Booking) (gp.BookingID, error) {
	b.ID = gp.BookingID(len(s.bookings))
	s.bookings = append(s.bookings, b)
	s.bookingsByDay[b.AppointmentDateKey] = append(s.bookingsByDay[b.AppointmentDateKey], b.ID)
	return b.ID, nil
}

func (s *state) UpdateBooking(_ context.Context, b gp.Booking) error {
	if uint64(b.ID) >= uint64(len(s.bookings)) {
		return fmt.Errorf("booking %d: %w", b.ID, gp.ErrInvalidBooking)
	}
	prev := s.bookings[b.ID]
	// Date and key are fixed at creation; the day index depends on them.
	b.AppointmentDate = prev.AppointmentDate
	b.AppointmentDateKey = prev.AppointmentDateKey
	s.bookings[b.ID] = b
	return nil
}

func (s *state) GetBooking(_ context.Context, id gp.BookingID) (*gp.Booking, error) {
	if uint64(id) >= uint64(len(s.bookings)) {
		return nil, nil
	}
	b := s.bookings[id]
	return &b, nil
}

func (s *state) ListBookings(_ context.Context, dateKey string) ([]gp.BookingID, error) {
	return slices.Clone(s.bookingsByDay[dateKey]), nil
}

// =============================================================================
// NOTES
// =============================================================================

func (s *state) InsertNote(_ context.Context, n gp.Note) (gp.NoteID, error) {
	n.ID = gp.NoteID(len(s.notes))
	s.notes = append(s.notes, n)
	s.notesByPatient[n.SubjectPatient] = append(s.notesByPatient[n.SubjectPatient], n.ID)
	return n.ID, nil
}

func (s *state) GetNote(_ context.Context, id gp.NoteID) (*gp.Note, error) {
	if uint64(id) >= uint64(len(s.notes)) {
		return nil, nil
	}
	n := s.notes[id]
	return &n, nil
}

func (s *state) ListNotes(_ context.Context, patient generic.Address) ([]gp.NoteID, error) {
	return slices.Clone(s.notesByPatient[patient]), nil
}
