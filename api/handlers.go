/*
handlers.go - HTTP API handlers for the practice ledger

PURPOSE:
  Exposes the gp.Engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates every decision to the engine. The caller
  address comes from auth.go.

ENDPOINTS:
  Practice:
    GET    /api/practice                      Name and refund policy

  Registry:
    GET    /api/admins                        List admins (admin)
    POST   /api/admins                        Add admin (admin)
    GET    /api/admins/{address}              Get admin (admin)
    GET    /api/doctors                       List doctors
    POST   /api/doctors                       Add doctor (admin)
    GET    /api/doctors/{address}             Get doctor
    GET    /api/patients                      List patients (admin)
    POST   /api/patients                      Add patient (admin)
    POST   /api/patients/register             Register caller as patient
    GET    /api/patients/{address}            Get patient (admin, doctor, self)
    GET    /api/patients/{address}/notes      Note ids for a patient
    GET    /api/patients/{address}/statement  Ledger entries (admin, self)

  Bookings:
    GET    /api/bookings?date=YYYY-MM-DD      Booking ids for a day
    POST   /api/bookings                      Add slot (admin)
    GET    /api/bookings/{id}                 Get booking (masked)
    POST   /api/bookings/{id}/book            Book (patient, pays fee)
    POST   /api/bookings/{id}/cancel          Cancel (patient, admin)
    POST   /api/bookings/{id}/no-show         Mark no-show (doctor)
    POST   /api/bookings/{id}/visited         Mark visited (doctor)

  Notes:
    GET    /api/notes/{id}                    Get note (author, subject)

  Escrow:
    POST   /api/balance/withdraw              Withdraw caller's balance
    POST   /api/escrow/fund                   Fund the escrow
    GET    /api/escrow                        Escrow holdings (admin)

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario (admin)

ERROR HANDLING:
  Engine errors map to HTTP status:
  - 400: Malformed input, invalid amounts
  - 401: No caller identity
  - 403: Role or visibility denial
  - 404: Unknown booking or note
  - 409: Slot taken or past, already registered, escrow short
  - 422: Wrong fee paid, nothing to withdraw
  - 502: Payout could not be handed to the payment system
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/gp-ledger/factory"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *gp.Engine
	log    zerolog.Logger
}

// NewHandler creates a new handler for the given engine.
func NewHandler(engine *gp.Engine, log zerolog.Logger) *Handler {
	return &Handler{Engine: engine, log: log.With().Str("component", "api").Logger()}
}

// GetPractice returns the practice name and refund terms.
func (h *Handler) GetPractice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PracticeDTO{
		Name:         h.Engine.Name(),
		RefundPolicy: factory.ToJSON(h.Engine.RefundPolicy()),
	})
}

// =============================================================================
// REGISTRY HANDLERS
// =============================================================================

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.Engine.Admins(r.Context(), CallerFrom(r.Context()))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addressStrings(admins))
}

func (h *Handler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	var req AddAdminRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required", nil)
		return
	}
	err := h.Engine.AddAdmin(r.Context(), CallerFrom(r.Context()), generic.Address(req.Address), req.Name)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AdminDTO{Address: req.Address, Name: req.Name, Active: true})
}

func (h *Handler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	a, err := h.Engine.Admin(r.Context(), CallerFrom(r.Context()), addressParam(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminDTO(a))
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.Engine.Doctors(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addressStrings(doctors))
}

func (h *Handler) AddDoctor(w http.ResponseWriter, r *http.Request) {
	var req AddDoctorRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required", nil)
		return
	}
	err := h.Engine.AddDoctor(r.Context(), CallerFrom(r.Context()), generic.Address(req.Address), req.Name, req.Specialty)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DoctorDTO{Address: req.Address, Name: req.Name, Specialty: req.Specialty, Active: true})
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	d, err := h.Engine.Doctor(r.Context(), addressParam(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorDTO(d))
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.Engine.Patients(r.Context(), CallerFrom(r.Context()))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addressStrings(patients))
}

// AddPatient registers a patient on behalf of someone else (admin form).
func (h *Handler) AddPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required", nil)
		return
	}
	profile, ok := patientProfile(w, req)
	if !ok {
		return
	}
	caller := CallerFrom(r.Context())
	if err := h.Engine.AddPatient(r.Context(), caller, generic.Address(req.Address), profile); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writePatient(w, r, caller, generic.Address(req.Address))
}

// RegisterPatient registers the caller as a patient (self form).
func (h *Handler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req RegisterPatientRequest
	if !decode(w, r, &req) {
		return
	}
	profile, ok := patientProfile(w, req)
	if !ok {
		return
	}
	if err := h.Engine.RegisterPatient(r.Context(), caller, profile); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writePatient(w, r, caller, caller)
}

func (h *Handler) writePatient(w http.ResponseWriter, r *http.Request, caller, addr generic.Address) {
	p, err := h.Engine.Patient(r.Context(), caller, addr)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientDTO(p))
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Patient(r.Context(), CallerFrom(r.Context()), addressParam(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientDTO(p))
}

// ListNotes returns a patient's note ids. Empty for unknown patients.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Engine.Notes(r.Context(), addressParam(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetStatement returns a patient's ledger entries and resulting balance.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	patient := addressParam(r)
	txs, err := h.Engine.Statement(r.Context(), CallerFrom(r.Context()), patient)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatementDTO{
		Patient:      patient.String(),
		Balance:      generic.Sum(txs),
		Transactions: toTransactionDTOs(txs),
	})
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// ListBookings returns the booking ids for ?date=YYYY-MM-DD.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required", nil)
		return
	}
	ids, err := h.Engine.Bookings(r.Context(), dateKey)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) AddBooking(w http.ResponseWriter, r *http.Request) {
	var req AddBookingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.DoctorAddress == "" || req.AppointmentDate.IsZero() {
		writeError(w, http.StatusBadRequest, "appointment_date and doctor_address are required", nil)
		return
	}
	if req.DateKey != "" {
		if _, err := time.Parse(generic.DateKeyLayout, req.DateKey); err != nil {
			writeError(w, http.StatusBadRequest, "date_key must be YYYY-MM-DD", err)
			return
		}
	}
	id, err := h.Engine.AddBooking(r.Context(), CallerFrom(r.Context()), gp.Slot{
		Date:    req.AppointmentDate,
		DateKey: req.DateKey,
		Doctor:  generic.Address(req.DoctorAddress),
		Fee:     req.Fee,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedBookingDTO{ID: id})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	b, err := h.Engine.Booking(r.Context(), CallerFrom(r.Context()), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	var req BookRequest
	if !decode(w, r, &req) {
		return
	}
	caller := CallerFrom(r.Context())
	if err := h.Engine.Book(r.Context(), caller, id, req.Note, req.Paid); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeBooking(w, r, caller, id)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	refund, err := h.Engine.CancelBooking(r.Context(), CallerFrom(r.Context()), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RefundDTO{BookingID: id, Refunded: refund})
}

func (h *Handler) MarkNoShowUp(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	caller := CallerFrom(r.Context())
	if err := h.Engine.MarkBookingAsNoShowUp(r.Context(), caller, id); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeBooking(w, r, caller, id)
}

func (h *Handler) MarkVisited(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	var req VisitedRequest
	if !decode(w, r, &req) {
		return
	}
	caller := CallerFrom(r.Context())
	if err := h.Engine.MarkBookingAsVisited(r.Context(), caller, id, req.Note); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeBooking(w, r, caller, id)
}

func (h *Handler) writeBooking(w http.ResponseWriter, r *http.Request, caller generic.Address, id gp.BookingID) {
	b, err := h.Engine.Booking(r.Context(), caller, id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// =============================================================================
// NOTE HANDLERS
// =============================================================================

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	raw, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id", err)
		return
	}
	n, err := h.Engine.Note(r.Context(), CallerFrom(r.Context()), gp.NoteID(raw))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

// =============================================================================
// ESCROW HANDLERS
// =============================================================================

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	amount, err := h.Engine.WithdrawPatientBalance(r.Context(), caller)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountDTO{Amount: amount})
}

func (h *Handler) Fund(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.Fund(r.Context(), caller, req.Amount); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AmountDTO{Amount: req.Amount})
}

func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	held, err := h.Engine.Holdings(r.Context(), CallerFrom(r.Context()))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountDTO{Amount: held})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps an engine failure to its HTTP status.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("engine failure")
	}
	msg := err.Error()
	var oe *gp.OpError
	if errors.As(err, &oe) {
		msg = oe.Err.Error()
	}
	writeError(w, status, msg, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrTransferFailed):
		return http.StatusBadGateway
	case gp.IsAuthorization(err):
		return http.StatusForbidden
	case gp.IsNotFound(err):
		return http.StatusNotFound
	case gp.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, gp.ErrInvalidFeePaid), errors.Is(err, gp.ErrZeroBalance):
		return http.StatusUnprocessableEntity
	case gp.IsInvalidInput(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func requireCaller(w http.ResponseWriter, r *http.Request) (generic.Address, bool) {
	caller := CallerFrom(r.Context())
	if caller.IsZero() {
		writeError(w, http.StatusUnauthorized, "caller identity required", nil)
		return generic.NoAddress, false
	}
	return caller, true
}

func addressParam(r *http.Request) generic.Address {
	return generic.Address(chi.URLParam(r, "address"))
}

func bookingIDParam(w http.ResponseWriter, r *http.Request) (gp.BookingID, bool) {
	raw, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id", err)
		return 0, false
	}
	return gp.BookingID(raw), true
}

func patientProfile(w http.ResponseWriter, req RegisterPatientRequest) (gp.PatientProfile, bool) {
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return gp.PatientProfile{}, false
	}
	dob, err := time.Parse(generic.DateKeyLayout, req.DateOfBirth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD", err)
		return gp.PatientProfile{}, false
	}
	if !req.BirthSex.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid birth_sex %d", int(req.BirthSex)), nil)
		return gp.PatientProfile{}, false
	}
	return gp.PatientProfile{Name: req.Name, DateOfBirth: dob, BirthSex: req.BirthSex}, true
}

func addressStrings(addrs []generic.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}
