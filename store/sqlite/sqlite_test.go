package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
	"github.com/warp/gp-ledger/notify"
	"github.com/warp/gp-ledger/store/sqlite"
	"github.com/warp/gp-ledger/store/storetest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLite_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) gp.TxStore { return newTestStore(t) })
}

func TestSQLite_AmountsRoundTrip(t *testing.T) {
	// GIVEN: A fee and a delta beyond int64
	// WHEN: They are stored and read back
	// THEN: Both survive exactly

	ctx := context.Background()
	store := newTestStore(t)
	huge := generic.MustParseAmount("123456789012345678901234567890")

	id, err := store.InsertBooking(ctx, gp.Booking{AppointmentDateKey: "k", Fee: huge})
	require.NoError(t, err)
	b, err := store.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.True(t, b.Fee.Equal(huge), b.Fee.String())

	require.NoError(t, store.Append(ctx, generic.Transaction{
		ID:      "t1",
		Account: "0xp",
		Type:    generic.TxWithdrawal,
		Delta:   huge.Neg(),
	}))
	txs, err := store.Load(ctx, "0xp")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Delta.Equal(huge.Neg()), txs[0].Delta.String())
	assert.Empty(t, txs[0].IdempotencyKey)
}

func TestSQLite_EmptyIdempotencyKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Append(ctx, generic.Transaction{ID: "t1", Account: generic.EscrowAccount, Type: generic.TxFunding, Delta: generic.NewAmount(1)}))
	require.NoError(t, store.Append(ctx, generic.Transaction{ID: "t2", Account: generic.EscrowAccount, Type: generic.TxFunding, Delta: generic.NewAmount(1)}))

	txs, err := store.Load(ctx, generic.EscrowAccount)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestSQLite_EngineSurvivesRestart(t *testing.T) {
	// GIVEN: A practice on a database file with a refunded cancellation
	// WHEN: The store is closed and reopened with a new engine
	// THEN: Admins, bookings, notes and balances are intact and no second
	//       bootstrap happens

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gp.db")
	clock := generic.NewManualClock(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	opts := gp.Options{
		Admin:          "0xadmin",
		InitialFunding: generic.NewAmount(500),
		Clock:          clock,
		Payments:       notify.NewRecorder(),
	}

	store, err := sqlite.New(path)
	require.NoError(t, err)
	engine, err := gp.New(ctx, store, opts)
	require.NoError(t, err)

	require.NoError(t, engine.AddDoctor(ctx, "0xadmin", "0xdoc", "Dr", "GP"))
	require.NoError(t, engine.RegisterPatient(ctx, "0xpat", gp.PatientProfile{Name: "Pat"}))
	fee := generic.NewAmount(1000)
	id, err := engine.AddBooking(ctx, "0xadmin", gp.Slot{Date: clock.Now().Add(30 * time.Hour), Doctor: "0xdoc", Fee: fee})
	require.NoError(t, err)
	require.NoError(t, engine.Book(ctx, "0xpat", id, "checkup", fee))
	refund, err := engine.CancelBooking(ctx, "0xpat", id)
	require.NoError(t, err)
	assert.True(t, refund.Equal(fee))
	require.NoError(t, store.Close())

	store, err = sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	engine, err = gp.New(ctx, store, opts)
	require.NoError(t, err)

	admins, err := engine.Admins(ctx, "0xadmin")
	require.NoError(t, err)
	assert.Equal(t, []generic.Address{"0xadmin"}, admins)

	held, err := engine.Holdings(ctx, "0xadmin")
	require.NoError(t, err)
	assert.True(t, held.Equal(generic.NewAmount(1500)), held.String())

	p, err := engine.Patient(ctx, "0xpat", "0xpat")
	require.NoError(t, err)
	assert.True(t, p.Balance.Equal(fee), p.Balance.String())

	ids, err := engine.Bookings(ctx, "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, []gp.BookingID{id, id + 1}, ids)

	notes, err := engine.Notes(ctx, "0xpat")
	require.NoError(t, err)
	assert.Len(t, notes, 3)

	amount, err := engine.WithdrawPatientBalance(ctx, "0xpat")
	require.NoError(t, err)
	assert.True(t, amount.Equal(fee))
}
