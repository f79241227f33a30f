package gp_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// =============================================================================
// ADMINS AND DOCTORS
// =============================================================================

func TestAddAdmin_AdminOnly(t *testing.T) {
	p := newPractice(t)

	err := p.engine.AddAdmin(p.ctx, stranger, "0xnew", "New")
	assert.ErrorIs(t, err, gp.ErrNotAnAdmin)

	require.NoError(t, p.engine.AddAdmin(p.ctx, admin, "0xnew", "New"))
	admins, err := p.engine.Admins(p.ctx, "0xnew")
	require.NoError(t, err)
	assert.Equal(t, []generic.Address{admin, "0xnew"}, admins)
}

func TestAddAdmin_Duplicate(t *testing.T) {
	p := newPractice(t)

	err := p.engine.AddAdmin(p.ctx, admin, admin, "Again")

	assert.ErrorIs(t, err, gp.ErrAlreadyRegistered)
	assert.True(t, gp.IsConflict(err))
}

func TestAdmins_HiddenFromNonAdmins(t *testing.T) {
	p := newPractice(t).withStaff()

	_, err := p.engine.Admins(p.ctx, doctor)
	assert.ErrorIs(t, err, gp.ErrNotAnAdmin)

	_, err = p.engine.Admin(p.ctx, patient, admin)
	assert.ErrorIs(t, err, gp.ErrNotAnAdmin)

	rec, err := p.engine.Admin(p.ctx, admin, admin)
	require.NoError(t, err)
	assert.Equal(t, "Admin", rec.Name)
	assert.True(t, rec.Active)
}

func TestAddDoctor(t *testing.T) {
	// GIVEN: An admin and a non-admin
	// WHEN: Both try to register doctors
	// THEN: Only the admin succeeds, duplicates are rejected, the directory is public

	p := newPractice(t)

	err := p.engine.AddDoctor(p.ctx, stranger, doctor, "Dr. Hale", "GP")
	assert.ErrorIs(t, err, gp.ErrNotAnAdmin)

	require.NoError(t, p.engine.AddDoctor(p.ctx, admin, doctor, "Dr. Hale", "GP"))
	err = p.engine.AddDoctor(p.ctx, admin, doctor, "Dr. Hale", "GP")
	assert.ErrorIs(t, err, gp.ErrAlreadyRegistered)

	doctors, err := p.engine.Doctors(p.ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.Address{doctor}, doctors)

	rec, err := p.engine.Doctor(p.ctx, doctor)
	require.NoError(t, err)
	assert.Equal(t, "GP", rec.Specialty)

	unknown, err := p.engine.Doctor(p.ctx, stranger)
	require.NoError(t, err)
	assert.Equal(t, gp.Doctor{}, unknown)
}

func TestDoctors_EmptyIsNotNil(t *testing.T) {
	p := newPractice(t)

	doctors, err := p.engine.Doctors(p.ctx)

	require.NoError(t, err)
	assert.NotNil(t, doctors)
	assert.Empty(t, doctors)
}

// =============================================================================
// PATIENTS
// =============================================================================

func TestRegisterPatient_AppendsRegistrationNote(t *testing.T) {
	p := newPractice(t)
	p.register(patient)

	notes := p.notes(patient)

	require.Len(t, notes, 1)
	assert.Equal(t, "Patient registered", notes[0].Text)
	assert.Equal(t, patient, notes[0].AddedBy)
	assert.Equal(t, patient, notes[0].SubjectPatient)
	assert.Equal(t, start, notes[0].Timestamp)
}

func TestRegisterPatient_Duplicate(t *testing.T) {
	p := newPractice(t)
	p.register(patient)

	err := p.engine.RegisterPatient(p.ctx, patient, gp.PatientProfile{Name: "Again"})

	assert.ErrorIs(t, err, gp.ErrAlreadyRegistered)
	assert.Len(t, p.notes(patient), 1)
}

func TestRegisterPatient_EmptyIdentity(t *testing.T) {
	p := newPractice(t)

	err := p.engine.RegisterPatient(p.ctx, generic.NoAddress, gp.PatientProfile{Name: "Nobody"})
	assert.ErrorIs(t, err, gp.ErrNotRegistered)

	err = p.engine.AddPatient(p.ctx, admin, generic.NoAddress, gp.PatientProfile{Name: "Nobody"})
	assert.ErrorIs(t, err, gp.ErrNotRegistered)

	patients, err := p.engine.Patients(p.ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, patients)
}

func TestAddPatient_ByAdmin(t *testing.T) {
	// GIVEN: An admin registering a patient on their behalf
	// WHEN: The patient reads their notes
	// THEN: The registration note is authored by the admin

	p := newPractice(t)

	err := p.engine.AddPatient(p.ctx, stranger, patient, gp.PatientProfile{Name: "P"})
	assert.ErrorIs(t, err, gp.ErrNotAnAdmin)

	require.NoError(t, p.engine.AddPatient(p.ctx, admin, patient, gp.PatientProfile{Name: "P", BirthSex: gp.SexMale}))

	notes := p.notes(patient)
	require.Len(t, notes, 1)
	assert.Equal(t, admin, notes[0].AddedBy)
}

func TestPatients_AdminOnly(t *testing.T) {
	p := newPractice(t).withStaff()

	_, err := p.engine.Patients(p.ctx, doctor)
	assert.ErrorIs(t, err, gp.ErrNotAnAdmin)

	list, err := p.engine.Patients(p.ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []generic.Address{patient, patient2}, list)
}

func TestPatient_Visibility(t *testing.T) {
	p := newPractice(t).withStaff()

	tests := []struct {
		name   string
		caller generic.Address
		wantOK bool
	}{
		{"self", patient, true},
		{"admin", admin, true},
		{"doctor", doctor, true},
		{"other patient", patient2, false},
		{"stranger", stranger, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := p.engine.Patient(p.ctx, tt.caller, patient)
			if !tt.wantOK {
				assert.ErrorIs(t, err, gp.ErrNotAllowed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, patient, rec.Address)
			assert.Equal(t, time.Date(1990, time.June, 1, 0, 0, 0, 0, time.UTC), rec.DateOfBirth)
			assert.Equal(t, gp.SexFemale, rec.BirthSex)
			assertAmount(t, 0, rec.Balance)
		})
	}
}

// =============================================================================
// NOTES
// =============================================================================

func TestNote_AuthorOrSubjectOnly(t *testing.T) {
	// GIVEN: A visit note written by the doctor about the patient
	// WHEN: Different callers read it
	// THEN: Author and subject may, an admin who did not write it may not

	p := newPractice(t).withStaff()
	id := p.booked(time.Hour)
	require.NoError(t, p.engine.MarkBookingAsVisited(p.ctx, doctor, id, "all good"))

	ids, err := p.engine.Notes(p.ctx, patient)
	require.NoError(t, err)
	visit := ids[len(ids)-1]

	n, err := p.engine.Note(p.ctx, doctor, visit)
	require.NoError(t, err)
	assert.Equal(t, "all good", n.Text)

	_, err = p.engine.Note(p.ctx, patient, visit)
	require.NoError(t, err)

	_, err = p.engine.Note(p.ctx, admin, visit)
	assert.ErrorIs(t, err, gp.ErrGetNoteNotAllowed)
	assert.ErrorIs(t, err, gp.ErrNotAllowed)
	assert.True(t, gp.IsAuthorization(err))
}

func TestNote_Missing(t *testing.T) {
	p := newPractice(t)

	_, err := p.engine.Note(p.ctx, admin, 99)

	assert.ErrorIs(t, err, gp.ErrInvalidNote)
}

func TestNotes_UnknownPatientHasNone(t *testing.T) {
	p := newPractice(t)

	ids, err := p.engine.Notes(p.ctx, stranger)

	require.NoError(t, err)
	assert.Empty(t, ids)
}
