package appointment

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the engine returns matches at most one of these
// through errors.Is; anything else is a storage failure and is internal.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrInternal   = errors.New("internal error")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrPatientNotFound     = newKindError(ErrNotFound, "patient not found")
	ErrDoctorNotFound      = newKindError(ErrNotFound, "doctor not found")
	ErrSlotNotFound        = newKindError(ErrNotFound, "slot not found")
	ErrAppointmentNotFound = newKindError(ErrNotFound, "appointment not found")

	ErrSlotUnavailable         = newKindError(ErrConflict, "no slot available at the requested time")
	ErrInvalidStatusTransition = newKindError(ErrConflict, "invalid status transition")

	ErrAuditWrite = newKindError(ErrInternal, "audit write failed")
)

// validationError carries a user-facing message and matches ErrValidation.
type validationError struct {
	field string
	msg   string
}

func (e *validationError) Error() string {
	if e.field == "" {
		return e.msg
	}
	return e.field + ": " + e.msg
}

func (e *validationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &validationError{field: field, msg: fmt.Sprintf(format, args...)}
}

// AuditWriteError is returned by AuditRecorder.Record when the store rejects
// the entry. It matches ErrAuditWrite and ErrInternal.
type AuditWriteError struct {
	Action AuditAction
	Err    error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("record %s audit entry: %v", e.Action, e.Err)
}

func (e *AuditWriteError) Unwrap() []error { return []error{ErrAuditWrite, e.Err} }

// RollbackError reports a compensation that failed after a booking step
// failed. Both errors are preserved; the pair is always internal.
type RollbackError struct {
	Cause    error
	Rollback error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Cause, e.Rollback)
}

func (e *RollbackError) Unwrap() []error { return []error{ErrInternal, e.Cause, e.Rollback} }

// Kind returns the error kind sentinel for err, ErrInternal when unclassified.
func Kind(err error) error {
	var rb *RollbackError
	if errors.As(err, &rb) {
		return ErrInternal
	}
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}
