// Package storetest checks a gp.TxStore implementation against the contract
// the engine relies on. Each backend runs it from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// Factory returns an empty store. Cleanup is the factory's responsibility.
type Factory func(t *testing.T) gp.TxStore

var (
	day1 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	day2 = day1.Add(24 * time.Hour)
)

// Run executes the whole suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("Registry", func(t *testing.T) { testRegistry(t, newStore(t)) })
	t.Run("RegistryDuplicate", func(t *testing.T) { testRegistryDuplicate(t, newStore(t)) })
	t.Run("Bookings", func(t *testing.T) { testBookings(t, newStore(t)) })
	t.Run("Notes", func(t *testing.T) { testNotes(t, newStore(t)) })
	t.Run("Ledger", func(t *testing.T) { testLedger(t, newStore(t)) })
	t.Run("LedgerBatchAtomic", func(t *testing.T) { testLedgerBatchAtomic(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
}

func testRegistry(t *testing.T, s gp.TxStore) {
	ctx := context.Background()

	missing, err := s.GetAdmin(ctx, "0xnobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.InsertAdmin(ctx, gp.Admin{Address: "0xa1", Name: "First", Active: true}))
	require.NoError(t, s.InsertAdmin(ctx, gp.Admin{Address: "0xa0", Name: "Second", Active: true}))
	require.NoError(t, s.InsertDoctor(ctx, gp.Doctor{Address: "0xd", Name: "Dr", Specialty: "GP", Active: true}))
	dob := time.Date(1985, time.February, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertPatient(ctx, gp.Patient{Address: "0xp", Name: "Pat", DateOfBirth: dob, BirthSex: gp.SexMale, Active: true}))

	admins, err := s.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.Address{"0xa1", "0xa0"}, admins, "insertion order")

	a, err := s.GetAdmin(ctx, "0xa0")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, gp.Admin{Address: "0xa0", Name: "Second", Active: true}, *a)

	d, err := s.GetDoctor(ctx, "0xd")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "GP", d.Specialty)

	doctors, err := s.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.Address{"0xd"}, doctors)

	p, err := s.GetPatient(ctx, "0xp")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Pat", p.Name)
	assert.True(t, dob.Equal(p.DateOfBirth))
	assert.Equal(t, gp.SexMale, p.BirthSex)
	assert.True(t, p.Active)

	patients, err := s.ListPatients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.Address{"0xp"}, patients)
}

func testRegistryDuplicate(t *testing.T, s gp.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertDoctor(ctx, gp.Doctor{Address: "0xd", Active: true}))

	err := s.InsertDoctor(ctx, gp.Doctor{Address: "0xd", Active: true})

	assert.ErrorIs(t, err, gp.ErrAlreadyRegistered)
}

func testBookings(t *testing.T, s gp.TxStore) {
	ctx := context.Background()

	b, err := s.GetBooking(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, b)

	slot := gp.Booking{
		ID:                 77, // ignored
		AppointmentDate:    day1,
		AppointmentDateKey: generic.DateKey(day1),
		DoctorAddress:      "0xd",
		Fee:                generic.NewAmount(1000),
		Status:             gp.StatusAvailable,
		Active:             true,
	}
	id0, err := s.InsertBooking(ctx, slot)
	require.NoError(t, err)
	slot.AppointmentDate, slot.AppointmentDateKey = day2, generic.DateKey(day2)
	id1, err := s.InsertBooking(ctx, slot)
	require.NoError(t, err)
	slot.AppointmentDate, slot.AppointmentDateKey = day1.Add(time.Hour), generic.DateKey(day1)
	id2, err := s.InsertBooking(ctx, slot)
	require.NoError(t, err)

	assert.Equal(t, []gp.BookingID{0, 1, 2}, []gp.BookingID{id0, id1, id2})

	first, err := s.ListBookings(ctx, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, []gp.BookingID{id0, id2}, first)

	none, err := s.ListBookings(ctx, "1999-01-01")
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := s.GetBooking(ctx, id0)
	require.NoError(t, err)
	require.NotNil(t, got)
	got.Status = gp.StatusBooked
	got.PatientAddress = "0xp"
	require.NoError(t, s.UpdateBooking(ctx, *got))

	updated, err := s.GetBooking(ctx, id0)
	require.NoError(t, err)
	assert.Equal(t, gp.StatusBooked, updated.Status)
	assert.Equal(t, generic.Address("0xp"), updated.PatientAddress)
	assert.True(t, day1.Equal(updated.AppointmentDate))
	assert.True(t, updated.Fee.Equal(generic.NewAmount(1000)))
	assert.Equal(t, id0, updated.ID)
}

func testNotes(t *testing.T, s gp.TxStore) {
	ctx := context.Background()

	n0, err := s.InsertNote(ctx, gp.Note{SubjectPatient: "0xp", AddedBy: "0xp", Timestamp: day1, Text: "Patient registered"})
	require.NoError(t, err)
	n1, err := s.InsertNote(ctx, gp.Note{SubjectPatient: "0xq", AddedBy: "0xq", Timestamp: day1, Text: "Patient registered"})
	require.NoError(t, err)
	n2, err := s.InsertNote(ctx, gp.Note{SubjectPatient: "0xp", AddedBy: "0xd", Timestamp: day2, Text: "visit"})
	require.NoError(t, err)

	ids, err := s.ListNotes(ctx, "0xp")
	require.NoError(t, err)
	assert.Equal(t, []gp.NoteID{n0, n2}, ids)
	assert.Equal(t, gp.NoteID(1), n1)

	n, err := s.GetNote(ctx, n2)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, n2, n.ID)
	assert.Equal(t, "visit", n.Text)
	assert.Equal(t, generic.Address("0xd"), n.AddedBy)
	assert.True(t, day2.Equal(n.Timestamp))

	missing, err := s.GetNote(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func tx(id string, account generic.Address, delta int64, key string) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(id),
		Account:        account,
		Type:           generic.TxRefund,
		Delta:          generic.NewAmount(delta),
		ReferenceID:    "0",
		Reason:         "test",
		IdempotencyKey: key,
		CreatedBy:      "0xa",
		CreatedAt:      day1,
	}
}

func testLedger(t *testing.T, s gp.TxStore) {
	ctx := context.Background()
	ledger := generic.NewLedger(s)

	require.NoError(t, ledger.Append(ctx, tx("t1", "0xp", 1000, "refund:0")))
	require.NoError(t, ledger.Append(ctx, tx("t2", "0xp", -400, "")))
	require.NoError(t, ledger.Append(ctx, tx("t3", "0xq", 5, "")))

	err := ledger.Append(ctx, tx("t4", "0xp", 1000, "refund:0"))
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	balance, err := ledger.Balance(ctx, "0xp")
	require.NoError(t, err)
	assert.True(t, balance.Equal(generic.NewAmount(600)), balance.String())

	txs, err := ledger.Transactions(ctx, "0xp")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, generic.TransactionID("t1"), txs[0].ID)
	assert.Equal(t, "refund:0", txs[0].IdempotencyKey)
	assert.Equal(t, generic.TxRefund, txs[0].Type)
	assert.True(t, day1.Equal(txs[0].CreatedAt))
	assert.True(t, txs[1].Delta.Equal(generic.NewAmount(-400)))

	exists, err := s.Exists(ctx, "refund:0")
	require.NoError(t, err)
	assert.True(t, exists)
}

func testLedgerBatchAtomic(t *testing.T, s gp.TxStore) {
	ctx := context.Background()
	ledger := generic.NewLedger(s)
	require.NoError(t, ledger.Append(ctx, tx("t1", "0xp", 1, "k1")))

	err := s.AppendBatch(ctx, []generic.Transaction{
		tx("t2", "0xp", 10, "k2"),
		tx("t3", "0xp", 10, "k2"),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	err = ledger.AppendBatch(ctx, []generic.Transaction{
		tx("t4", "0xp", 10, "k4"),
		tx("t5", "0xp", 10, "k1"),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	balance, err := ledger.Balance(ctx, "0xp")
	require.NoError(t, err)
	assert.True(t, balance.Equal(generic.NewAmount(1)), balance.String())
}

func testTxRollback(t *testing.T, s gp.TxStore) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx gp.Store) error {
		if err := tx.InsertAdmin(ctx, gp.Admin{Address: "0xa", Active: true}); err != nil {
			return err
		}
		if _, err := tx.InsertBooking(ctx, gp.Booking{AppointmentDate: day1, AppointmentDateKey: "k", Status: gp.StatusAvailable}); err != nil {
			return err
		}
		if _, err := tx.InsertNote(ctx, gp.Note{SubjectPatient: "0xp", Timestamp: day1, Text: "x"}); err != nil {
			return err
		}
		if err := generic.NewLedger(tx).Append(ctx, txFor("0xp", "k")); err != nil {
			return err
		}
		// Writes are visible inside the transaction.
		a, err := tx.GetAdmin(ctx, "0xa")
		if err != nil || a == nil {
			return errors.New("admin not visible inside transaction")
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := s.GetAdmin(ctx, "0xa")
	require.NoError(t, err)
	assert.Nil(t, a)
	ids, err := s.ListBookings(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, ids)
	notes, err := s.ListNotes(ctx, "0xp")
	require.NoError(t, err)
	assert.Empty(t, notes)
	exists, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	// Ids restart where the rolled back transaction began.
	id, err := s.InsertBooking(ctx, gp.Booking{AppointmentDate: day1, AppointmentDateKey: "k", Status: gp.StatusAvailable})
	require.NoError(t, err)
	assert.Equal(t, gp.BookingID(0), id)
}

func testTxCommit(t *testing.T, s gp.TxStore) {
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx gp.Store) error {
		if err := tx.InsertPatient(ctx, gp.Patient{Address: "0xp", Name: "Pat", Active: true}); err != nil {
			return err
		}
		return tx.AppendBatch(ctx, []generic.Transaction{txFor("0xp", "a"), txFor(generic.EscrowAccount, "b")})
	})
	require.NoError(t, err)

	p, err := s.GetPatient(ctx, "0xp")
	require.NoError(t, err)
	require.NotNil(t, p)
	escrow, err := s.Load(ctx, generic.EscrowAccount)
	require.NoError(t, err)
	assert.Len(t, escrow, 1)
}

func txFor(account generic.Address, key string) generic.Transaction {
	return tx("tx-"+key, account, 100, key)
}
