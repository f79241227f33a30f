/*
store.go - Persistence interface for the practice state

PURPOSE:
  Defines what the Engine needs from a database: role registries, bookings
  with their date index, notes with their patient index, and the ledger.
  Records are never deleted. Bookings are the only records updated in place
  (status and patient link); everything else is insert-only.

LOOKUPS:
  Get* methods return (nil, nil) when the record does not exist.
  List* methods return ids/addresses in insertion order. A nil slice means
  empty.

SEQUENTIAL IDS:
  InsertBooking and InsertNote ignore the ID field and assign the next id,
  starting at 0.

IMPLEMENTATIONS:
  - store/memory: In-memory, snapshot + rollback transactions
  - store/sqlite: SQLite, database/sql transactions
*/
package gp

import (
	"context"

	"github.com/warp/gp-ledger/generic"
)

// RegistryStore persists role records.
type RegistryStore interface {
	InsertAdmin(ctx context.Context, a Admin) error
	GetAdmin(ctx context.Context, addr generic.Address) (*Admin, error)
	ListAdmins(ctx context.Context) ([]generic.Address, error)

	InsertDoctor(ctx context.Context, d Doctor) error
	GetDoctor(ctx context.Context, addr generic.Address) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]generic.Address, error)

	InsertPatient(ctx context.Context, p Patient) error
	GetPatient(ctx context.Context, addr generic.Address) (*Patient, error)
	ListPatients(ctx context.Context) ([]generic.Address, error)
}

// BookingStore persists bookings and the date-key index.
type BookingStore interface {
	InsertBooking(ctx context.Context, b Booking) (BookingID, error)
	UpdateBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)
	ListBookings(ctx context.Context, dateKey string) ([]BookingID, error)
}

// NoteStore persists notes and the patient index.
type NoteStore interface {
	InsertNote(ctx context.Context, n Note) (NoteID, error)
	GetNote(ctx context.Context, id NoteID) (*Note, error)
	ListNotes(ctx context.Context, patient generic.Address) ([]NoteID, error)
}

// Store is everything the Engine persists.
type Store interface {
	generic.Store
	RegistryStore
	BookingStore
	NoteStore
}

// TxStore runs a function against the store atomically.
// If fn returns an error, every write made through the Store it received is
// rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
