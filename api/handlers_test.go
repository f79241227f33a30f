/*
handlers_test.go - HTTP tests for the practice API

Tests for:
- The booking flow end to end (register, book, cancel, withdraw)
- Masking of bookings for unrelated callers
- Error to status mapping
- Caller identity (bearer tokens, development header)
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
	"github.com/warp/gp-ledger/notify"
	"github.com/warp/gp-ledger/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	testAdmin   generic.Address = "0xadmin"
	testDoctor  generic.Address = "0xdoctor"
	testPatient generic.Address = "0xpatient"
	testOther   generic.Address = "0xother"
)

var (
	testStart = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	testKey   = []byte("0123456789abcdef0123456789abcdef")
)

type testServer struct {
	t      *testing.T
	router http.Handler
	engine *gp.Engine
	clock  *generic.ManualClock
	out    *notify.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := generic.NewManualClock(testStart)
	out := notify.NewRecorder()
	engine, err := gp.New(context.Background(), memory.New(), gp.Options{
		Name:     "Test Practice",
		Admin:    testAdmin,
		Clock:    clock,
		Payments: out,
		Notifier: out,
	})
	require.NoError(t, err)

	router := NewRouter(NewHandler(engine, zerolog.Nop()), RouterOptions{
		Auth:   Auth{SigningKey: testKey, AllowHeader: true},
		Logger: zerolog.Nop(),
	})
	return &testServer{t: t, router: router, engine: engine, clock: clock, out: out}
}

// do sends a request as caller (anonymous when empty).
func (s *testServer) do(method, path string, caller generic.Address, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(HeaderCallerAddress, caller.String())
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// setup registers a doctor and a patient and publishes a slot lead from now.
func (s *testServer) setup(lead time.Duration) gp.BookingID {
	s.t.Helper()
	rec := s.do("POST", "/api/doctors", testAdmin, AddDoctorRequest{Address: testDoctor.String(), Name: "Dr. Hale", Specialty: "GP"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, p := range []generic.Address{testPatient, testOther} {
		rec = s.do("POST", "/api/patients/register", p, RegisterPatientRequest{Name: "Pat", DateOfBirth: "1990-06-01", BirthSex: gp.SexFemale})
		require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = s.do("POST", "/api/bookings", testAdmin, AddBookingRequest{
		AppointmentDate: testStart.Add(lead),
		DoctorAddress:   testDoctor.String(),
		Fee:             generic.NewAmount(1000),
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeAs[CreatedBookingDTO](s.t, rec).ID
}

// =============================================================================
// FLOW
// =============================================================================

func TestAPI_BookCancelWithdraw(t *testing.T) {
	// GIVEN: A slot 25h ahead
	// WHEN: The patient books, cancels and withdraws over HTTP
	// THEN: Each step reports the new state and the payout is sent

	s := newTestServer(t)
	id := s.setup(25 * time.Hour)

	rec := s.do("POST", "/api/bookings/0/book", testPatient, map[string]string{"note": "cough", "paid": "1000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	booking := decodeAs[BookingDTO](t, rec)
	assert.Equal(t, id, booking.ID)
	assert.Equal(t, gp.StatusBooked, booking.Status)
	assert.Equal(t, testPatient.String(), booking.PatientAddress)
	assert.Equal(t, "2025-03-11", booking.AppointmentDateKey)

	rec = s.do("POST", "/api/bookings/0/cancel", testPatient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refund := decodeAs[RefundDTO](t, rec)
	assert.True(t, refund.Refunded.Equal(generic.NewAmount(1000)))

	rec = s.do("GET", "/api/bookings?date=2025-03-11", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []gp.BookingID{0, 1}, decodeAs[[]gp.BookingID](t, rec))

	rec = s.do("GET", "/api/patients/0xpatient/statement", testPatient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	statement := decodeAs[StatementDTO](t, rec)
	assert.True(t, statement.Balance.Equal(generic.NewAmount(1000)))
	require.Len(t, statement.Transactions, 1)
	assert.Equal(t, "refund", statement.Transactions[0].Type)

	rec = s.do("POST", "/api/balance/withdraw", testPatient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"amount":"1000"}`, rec.Body.String())
	assert.Len(t, s.out.Payouts(), 1)

	rec = s.do("POST", "/api/balance/withdraw", testPatient, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPI_BookingMasking(t *testing.T) {
	s := newTestServer(t)
	s.setup(time.Hour)
	rec := s.do("POST", "/api/bookings/0/book", testPatient, map[string]string{"note": "x", "paid": "1000"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do("POST", "/api/bookings/0/no-show", testDoctor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, gp.StatusNoShowUp, decodeAs[BookingDTO](t, rec).Status)

	rec = s.do("GET", "/api/bookings/0", testOther, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	masked := decodeAs[BookingDTO](t, rec)
	assert.Equal(t, "", masked.PatientAddress)
	assert.Equal(t, gp.StatusBooked, masked.Status)

	rec = s.do("GET", "/api/bookings/0", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_VisitedAndNotes(t *testing.T) {
	s := newTestServer(t)
	s.setup(time.Hour)
	s.do("POST", "/api/bookings/0/book", testPatient, map[string]string{"note": "x", "paid": "1000"})

	rec := s.do("POST", "/api/bookings/0/visited", testPatient, VisitedRequest{Note: "self-diagnosed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("POST", "/api/bookings/0/visited", testDoctor, VisitedRequest{Note: "rest"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do("GET", "/api/patients/0xpatient/notes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ids := decodeAs[[]gp.NoteID](t, rec)
	require.Len(t, ids, 3)

	visit := fmt.Sprintf("/api/notes/%d", ids[2])
	rec = s.do("GET", visit, testPatient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	note := decodeAs[NoteDTO](t, rec)
	assert.Equal(t, "rest", note.Text)
	assert.Equal(t, testDoctor.String(), note.AddedBy)

	rec = s.do("GET", visit, testOther, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("GET", "/api/notes/99", testPatient, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_RegistryAndEscrow(t *testing.T) {
	s := newTestServer(t)
	s.setup(time.Hour)

	rec := s.do("GET", "/api/practice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	practice := decodeAs[PracticeDTO](t, rec)
	assert.Equal(t, "Test Practice", practice.Name)
	assert.Equal(t, int64(110), practice.RefundPolicy.AdminPercent)

	rec = s.do("GET", "/api/doctors", "", nil)
	assert.JSONEq(t, `["0xdoctor"]`, rec.Body.String())

	rec = s.do("GET", "/api/patients", testAdmin, nil)
	assert.JSONEq(t, `["0xpatient","0xother"]`, rec.Body.String())

	rec = s.do("GET", "/api/patients/0xpatient", testDoctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	patient := decodeAs[PatientDTO](t, rec)
	assert.Equal(t, "1990-06-01", patient.DateOfBirth)
	assert.Equal(t, gp.SexFemale, patient.BirthSex)

	rec = s.do("POST", "/api/patients/register", testPatient, RegisterPatientRequest{Name: "Again", DateOfBirth: "1990-06-01"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do("POST", "/api/admins", testDoctor, AddAdminRequest{Address: "0xnew", Name: "New"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("POST", "/api/escrow/fund", testOther, AmountRequest{Amount: generic.NewAmount(250)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do("GET", "/api/escrow", testAdmin, nil)
	assert.JSONEq(t, `{"amount":"250"}`, rec.Body.String())
}

// =============================================================================
// INPUT VALIDATION
// =============================================================================

func TestAPI_BadInput(t *testing.T) {
	s := newTestServer(t)
	s.setup(time.Hour)

	tests := []struct {
		name   string
		method string
		path   string
		caller generic.Address
		body   any
		want   int
	}{
		{"day without date", "GET", "/api/bookings", "", nil, http.StatusBadRequest},
		{"non-numeric booking id", "GET", "/api/bookings/abc", testAdmin, nil, http.StatusBadRequest},
		{"unknown booking", "GET", "/api/bookings/42", testAdmin, nil, http.StatusNotFound},
		{"bad date of birth", "POST", "/api/patients/register", "0xnew", RegisterPatientRequest{Name: "N", DateOfBirth: "01/06/1990"}, http.StatusBadRequest},
		{"missing name", "POST", "/api/patients/register", "0xnew", RegisterPatientRequest{DateOfBirth: "1990-06-01"}, http.StatusBadRequest},
		{"anonymous registration", "POST", "/api/patients/register", "", RegisterPatientRequest{Name: "N", DateOfBirth: "1990-06-01"}, http.StatusUnauthorized},
		{"anonymous withdrawal", "POST", "/api/balance/withdraw", "", nil, http.StatusUnauthorized},
		{"wrong fee", "POST", "/api/bookings/0/book", testPatient, map[string]string{"paid": "1"}, http.StatusUnprocessableEntity},
		{"fractional fee", "POST", "/api/bookings/0/book", testPatient, map[string]string{"paid": "1.5"}, http.StatusBadRequest},
		{"zero funding", "POST", "/api/escrow/fund", testOther, map[string]string{"amount": "0"}, http.StatusBadRequest},
		{"bad date key", "POST", "/api/bookings", testAdmin, map[string]string{"appointment_date": "2025-03-12T10:00:00Z", "date_key": "tomorrow", "doctor_address": "0xdoctor", "fee": "1"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAPI_PastSlotConflict(t *testing.T) {
	s := newTestServer(t)
	s.setup(time.Hour)
	s.clock.Advance(2 * time.Hour)

	rec := s.do("POST", "/api/bookings/0/book", testPatient, map[string]string{"paid": "1000"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not available", decodeAs[ErrorResponse](t, rec).Error)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&gp.OpError{Op: "Book", Err: gp.ErrNotRegistered}, http.StatusForbidden},
		{gp.ErrNotTheDoctor, http.StatusForbidden},
		{gp.ErrGetNoteNotAllowed, http.StatusForbidden},
		{gp.ErrInvalidBooking, http.StatusNotFound},
		{gp.ErrNotAvailable, http.StatusConflict},
		{&generic.InsufficientFundsError{}, http.StatusConflict},
		{gp.ErrInvalidFeePaid, http.StatusUnprocessableEntity},
		{generic.ErrInvalidAmount, http.StatusBadRequest},
		{&generic.TransferError{Err: errors.New("down")}, http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_BearerToken(t *testing.T) {
	s := newTestServer(t)

	token, err := IssueToken(testKey, testAdmin, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/admins", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `["0xadmin"]`, rec.Body.String())

	forged, err := IssueToken([]byte("another-key-another-key-another!!"), testAdmin, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testKey, testAdmin, -time.Minute)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"wrong key":  "Bearer " + forged,
		"expired":    "Bearer " + expired,
		"not bearer": "Basic abc",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/admins", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_HeaderOnlyWhenAllowed(t *testing.T) {
	var seen generic.Address
	handler := Auth{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallerFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderCallerAddress, "0xspoof")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, generic.NoAddress, seen)
}
