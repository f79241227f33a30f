package gp

import (
	"context"

	"github.com/warp/gp-ledger/generic"
)

// =============================================================================
// ADMINS
// =============================================================================

// AddAdmin registers another admin. Admin-only.
func (e *Engine) AddAdmin(ctx context.Context, caller, addr generic.Address, name string) error {
	return e.mutate(ctx, "AddAdmin", caller, func(o *op) error {
		if err := o.requireAdmin(ctx); err != nil {
			return err
		}
		existing, err := o.GetAdmin(ctx, addr)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyRegistered
		}
		return o.InsertAdmin(ctx, Admin{Address: addr, Name: name, Active: true})
	})
}

// Admins lists admin addresses in registration order. Admin-only.
func (e *Engine) Admins(ctx context.Context, caller generic.Address) ([]generic.Address, error) {
	var out []generic.Address
	err := e.query(ctx, "GetAdmins", caller, func(o *op) error {
		if err := o.requireAdmin(ctx); err != nil {
			return err
		}
		var err error
		out, err = o.ListAdmins(ctx)
		return err
	})
	return nonNil(out), err
}

// Admin returns one admin record (the zero record if unknown). Admin-only.
func (e *Engine) Admin(ctx context.Context, caller, addr generic.Address) (Admin, error) {
	var out Admin
	err := e.query(ctx, "GetAdmin", caller, func(o *op) error {
		if err := o.requireAdmin(ctx); err != nil {
			return err
		}
		a, err := o.GetAdmin(ctx, addr)
		if a != nil {
			out = *a
		}
		return err
	})
	return out, err
}

// =============================================================================
// DOCTORS
// =============================================================================

// AddDoctor registers a doctor. Admin-only.
func (e *Engine) AddDoctor(ctx context.Context, caller, addr generic.Address, name, specialty string) error {
	return e.mutate(ctx, "AddDoctor", caller, func(o *op) error {
		if err := o.requireAdmin(ctx); err != nil {
			return err
		}
		existing, err := o.GetDoctor(ctx, addr)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyRegistered
		}
		return o.InsertDoctor(ctx, Doctor{Address: addr, Name: name, Specialty: specialty, Active: true})
	})
}

// Doctors lists doctor addresses. Public.
func (e *Engine) Doctors(ctx context.Context) ([]generic.Address, error) {
	var out []generic.Address
	err := e.query(ctx, "GetDoctors", generic.NoAddress, func(o *op) error {
		var err error
		out, err = o.ListDoctors(ctx)
		return err
	})
	return nonNil(out), err
}

// Doctor returns one doctor record (the zero record if unknown). Public.
func (e *Engine) Doctor(ctx context.Context, addr generic.Address) (Doctor, error) {
	var out Doctor
	err := e.query(ctx, "GetDoctor", generic.NoAddress, func(o *op) error {
		d, err := o.GetDoctor(ctx, addr)
		if d != nil {
			out = *d
		}
		return err
	})
	return out, err
}

// =============================================================================
// PATIENTS
// =============================================================================

// RegisterPatient registers the caller as a patient. The empty identity
// cannot register.
func (e *Engine) RegisterPatient(ctx context.Context, caller generic.Address, profile PatientProfile) error {
	return e.mutate(ctx, "AddPatient", caller, func(o *op) error {
		return o.addPatient(ctx, caller, profile)
	})
}

// AddPatient registers a patient on their behalf. Admin-only.
func (e *Engine) AddPatient(ctx context.Context, caller, addr generic.Address, profile PatientProfile) error {
	return e.mutate(ctx, "AddPatient", caller, func(o *op) error {
		if err := o.requireAdmin(ctx); err != nil {
			return err
		}
		return o.addPatient(ctx, addr, profile)
	})
}

func (o *op) addPatient(ctx context.Context, addr generic.Address, profile PatientProfile) error {
	if addr == generic.NoAddress {
		return ErrNotRegistered
	}
	existing, err := o.GetPatient(ctx, addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyRegistered
	}
	err = o.InsertPatient(ctx, Patient{
		Address:     addr,
		Name:        profile.Name,
		DateOfBirth: profile.DateOfBirth,
		BirthSex:    profile.BirthSex,
		Active:      true,
	})
	if err != nil {
		return err
	}
	_, err = o.appendNote(ctx, addr, noteRegistered)
	return err
}

// Patients lists patient addresses. Admin-only.
func (e *Engine) Patients(ctx context.Context, caller generic.Address) ([]generic.Address, error) {
	var out []generic.Address
	err := e.query(ctx, "GetPatients", caller, func(o *op) error {
		if err := o.requireAdmin(ctx); err != nil {
			return err
		}
		var err error
		out, err = o.ListPatients(ctx)
		return err
	})
	return nonNil(out), err
}

// Patient returns a patient record with its ledger balance. Allowed for an
// admin, any doctor, or the patient themself.
func (e *Engine) Patient(ctx context.Context, caller, addr generic.Address) (Patient, error) {
	var out Patient
	err := e.query(ctx, "GetPatient", caller, func(o *op) error {
		r, err := o.rolesOf(ctx, caller)
		if err != nil {
			return err
		}
		if !canSeePatient(caller, r, addr) {
			return ErrNotAllowed
		}
		p, err := o.GetPatient(ctx, addr)
		if err != nil || p == nil {
			return err
		}
		out = *p
		out.Balance, err = o.ledger.Balance(ctx, addr)
		return err
	})
	return out, err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
