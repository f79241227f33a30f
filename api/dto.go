/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the engine's
  records from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Addresses are strings; the empty string is "no address"
  - Amounts are decimal strings in the smallest currency unit
  - Booking status and sex are lower-case names ("no_show_up", "female")
  - Dates are RFC 3339; date keys are YYYY-MM-DD

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/gp-ledger/factory"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// =============================================================================
// PRACTICE
// =============================================================================

type PracticeDTO struct {
	Name         string                   `json:"name"`
	RefundPolicy factory.RefundPolicyJSON `json:"refund_policy"`
}

// =============================================================================
// REGISTRY
// =============================================================================

type AdminDTO struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Active  bool   `json:"active"`
}

type AddAdminRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type DoctorDTO struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Active    bool   `json:"active"`
}

type AddDoctorRequest struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

type PatientDTO struct {
	Address     string         `json:"address"`
	Name        string         `json:"name"`
	DateOfBirth string         `json:"date_of_birth"`
	BirthSex    gp.Sex         `json:"birth_sex"`
	Balance     generic.Amount `json:"balance"`
	Active      bool           `json:"active"`
}

// RegisterPatientRequest registers a patient. Address is only read on the
// admin route; self-registration always uses the caller.
type RegisterPatientRequest struct {
	Address     string `json:"address,omitempty"`
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	BirthSex    gp.Sex `json:"birth_sex"`
}

// =============================================================================
// BOOKINGS
// =============================================================================

type BookingDTO struct {
	ID                 gp.BookingID     `json:"id"`
	AppointmentDate    time.Time        `json:"appointment_date"`
	AppointmentDateKey string           `json:"appointment_date_key"`
	DoctorAddress      string           `json:"doctor_address"`
	PatientAddress     string           `json:"patient_address"`
	Fee                generic.Amount   `json:"fee"`
	Status             gp.BookingStatus `json:"status"`
	Active             bool             `json:"active"`
}

type AddBookingRequest struct {
	AppointmentDate time.Time      `json:"appointment_date"`
	DateKey         string         `json:"date_key,omitempty"`
	DoctorAddress   string         `json:"doctor_address"`
	Fee             generic.Amount `json:"fee"`
}

type BookRequest struct {
	Note string         `json:"note"`
	Paid generic.Amount `json:"paid"`
}

type VisitedRequest struct {
	Note string `json:"note"`
}

type CreatedBookingDTO struct {
	ID gp.BookingID `json:"id"`
}

type RefundDTO struct {
	BookingID gp.BookingID   `json:"booking_id"`
	Refunded  generic.Amount `json:"refunded"`
}

// =============================================================================
// NOTES
// =============================================================================

type NoteDTO struct {
	ID             gp.NoteID `json:"id"`
	SubjectPatient string    `json:"subject_patient"`
	AddedBy        string    `json:"added_by"`
	Timestamp      time.Time `json:"timestamp"`
	Text           string    `json:"note"`
}

// =============================================================================
// LEDGER
// =============================================================================

type TransactionDTO struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Delta       generic.Amount `json:"delta"`
	ReferenceID string         `json:"reference_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
}

type StatementDTO struct {
	Patient      string           `json:"patient"`
	Balance      generic.Amount   `json:"balance"`
	Transactions []TransactionDTO `json:"transactions"`
}

type AmountRequest struct {
	Amount generic.Amount `json:"amount"`
}

type AmountDTO struct {
	Amount generic.Amount `json:"amount"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request body for loading a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ScenarioResultDTO lists what a scenario created.
type ScenarioResultDTO struct {
	ScenarioID string         `json:"scenario_id"`
	Doctors    []string       `json:"doctors"`
	Bookings   []gp.BookingID `json:"bookings"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAdminDTO(a gp.Admin) AdminDTO {
	return AdminDTO{Address: a.Address.String(), Name: a.Name, Active: a.Active}
}

func toDoctorDTO(d gp.Doctor) DoctorDTO {
	return DoctorDTO{Address: d.Address.String(), Name: d.Name, Specialty: d.Specialty, Active: d.Active}
}

func toPatientDTO(p gp.Patient) PatientDTO {
	dto := PatientDTO{
		Address:  p.Address.String(),
		Name:     p.Name,
		BirthSex: p.BirthSex,
		Balance:  p.Balance,
		Active:   p.Active,
	}
	if !p.DateOfBirth.IsZero() {
		dto.DateOfBirth = p.DateOfBirth.Format(generic.DateKeyLayout)
	}
	return dto
}

func toBookingDTO(b gp.Booking) BookingDTO {
	return BookingDTO{
		ID:                 b.ID,
		AppointmentDate:    b.AppointmentDate,
		AppointmentDateKey: b.AppointmentDateKey,
		DoctorAddress:      b.DoctorAddress.String(),
		PatientAddress:     b.PatientAddress.String(),
		Fee:                b.Fee,
		Status:             b.Status,
		Active:             b.Active,
	}
}

func toNoteDTO(n gp.Note) NoteDTO {
	return NoteDTO{
		ID:             n.ID,
		SubjectPatient: n.SubjectPatient.String(),
		AddedBy:        n.AddedBy.String(),
		Timestamp:      n.Timestamp,
		Text:           n.Text,
	}
}

func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, TransactionDTO{
			ID:          string(tx.ID),
			Type:        string(tx.Type),
			Delta:       tx.Delta,
			ReferenceID: tx.ReferenceID,
			Reason:      tx.Reason,
			CreatedBy:   tx.CreatedBy.String(),
			CreatedAt:   tx.CreatedAt,
		})
	}
	return dtos
}
