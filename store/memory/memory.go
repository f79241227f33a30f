// Package memory provides an in-memory gp.TxStore for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	s  *state
}

func New() *Memory {
	return &Memory{s: newState()}
}

// WithTx executes fn within a transaction.
// The transaction works on a copy of the state which replaces the current
// one only if fn succeeds.
func (m *Memory) WithTx(_ context.Context, fn func(gp.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.s.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.s = work
	return nil
}

func (m *Memory) Append(ctx context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Append(ctx, tx)
}

func (m *Memory) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.AppendBatch(ctx, txs)
}

func (m *Memory) Load(ctx context.Context, account generic.Address) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.Load(ctx, account)
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.Exists(ctx, key)
}

func (m *Memory) InsertAdmin(ctx context.Context, a gp.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertAdmin(ctx, a)
}

func (m *Memory) GetAdmin(ctx context.Context, addr generic.Address) (*gp.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetAdmin(ctx, addr)
}

func (m *Memory) ListAdmins(ctx context.Context) ([]generic.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListAdmins(ctx)
}

func (m *Memory) InsertDoctor(ctx context.Context, d gp.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertDoctor(ctx, d)
}

func (m *Memory) GetDoctor(ctx context.Context, addr generic.Address) (*gp.Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetDoctor(ctx, addr)
}

func (m *Memory) ListDoctors(ctx context.Context) ([]generic.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListDoctors(ctx)
}

func (m *Memory) InsertPatient(ctx context.Context, p gp.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertPatient(ctx, p)
}

func (m *Memory) GetPatient(ctx context.Context, addr generic.Address) (*gp.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetPatient(ctx, addr)
}

func (m *Memory) ListPatients(ctx context.Context) ([]generic.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListPatients(ctx)
}

func (m *Memory) InsertBooking(ctx context.Context, b gp.Booking) (gp.BookingID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertBooking(ctx, b)
}

func (m *Memory) UpdateBooking(ctx context.Context, b gp.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.UpdateBooking(ctx, b)
}

func (m *Memory) GetBooking(ctx context.Context, id gp.BookingID) (*gp.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetBooking(ctx, id)
}

func (m *Memory) ListBookings(ctx context.Context, dateKey string) ([]gp.BookingID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListBookings(ctx, dateKey)
}

func (m *Memory) InsertNote(ctx context.Context, n gp.Note) (gp.NoteID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertNote(ctx, n)
}

func (m *Memory) GetNote(ctx context.Context, id gp.NoteID) (*gp.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetNote(ctx, id)
}

func (m *Memory) ListNotes(ctx context.Context, patient generic.Address) ([]gp.NoteID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListNotes(ctx, patient)
}
