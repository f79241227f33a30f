package gp

import (
	"context"

	"github.com/warp/gp-ledger/generic"
)

// appendNote adds a note about subject authored by the caller.
func (o *op) appendNote(ctx context.Context, subject generic.Address, text string) (NoteID, error) {
	return o.InsertNote(ctx, Note{
		SubjectPatient: subject,
		AddedBy:        o.caller,
		Timestamp:      o.now,
		Text:           text,
	})
}

// Notes lists a patient's note ids, oldest first. Unknown patients have none.
func (e *Engine) Notes(ctx context.Context, patient generic.Address) ([]NoteID, error) {
	var out []NoteID
	err := e.query(ctx, "GetNotes", generic.NoAddress, func(o *op) error {
		var err error
		out, err = o.ListNotes(ctx, patient)
		return err
	})
	return nonNil(out), err
}

// Note returns a note to its author or its subject.
func (e *Engine) Note(ctx context.Context, caller generic.Address, id NoteID) (Note, error) {
	var out Note
	err := e.query(ctx, "GetNote", caller, func(o *op) error {
		n, err := o.GetNote(ctx, id)
		if err != nil {
			return err
		}
		if n == nil {
			return ErrInvalidNote
		}
		if !canReadNote(caller, *n) {
			return ErrGetNoteNotAllowed
		}
		out = *n
		return nil
	})
	return out, err
}
