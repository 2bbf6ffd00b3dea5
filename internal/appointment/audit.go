package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AuditPolicy decides what a failed audit write does to the operation that
// produced it.
type AuditPolicy string

const (
	// AuditStrict fails the operation (and compensates a booking).
	AuditStrict AuditPolicy = "strict"
	// AuditLenient logs the failure and lets the operation succeed.
	AuditLenient AuditPolicy = "lenient"
)

func ParseAuditPolicy(s string) (AuditPolicy, error) {
	switch AuditPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AuditLenient:
		return AuditLenient, nil
	case AuditStrict:
		return AuditStrict, nil
	}
	return "", fmt.Errorf("unknown audit policy %q", s)
}

type AuditRecord struct {
	Action        AuditAction
	AppointmentID *uuid.UUID
	PatientID     *uuid.UUID
	DoctorID      string
	Details       string
	Status        AuditStatus
	ErrorMessage  string
}

// AuditRecorder appends to the audit trail. It never mutates existing entries.
type AuditRecorder struct {
	store AuditStore
}

func NewAuditRecorder(store AuditStore) *AuditRecorder {
	return &AuditRecorder{store: store}
}

// Record appends one entry. A store failure comes back as *AuditWriteError so
// the caller can apply its AuditPolicy.
func (r *AuditRecorder) Record(ctx context.Context, rec AuditRecord) (*AuditLogEntry, error) {
	if !rec.Action.Valid() {
		return nil, invalid("action", "unknown audit action %q", rec.Action)
	}
	if rec.Status == "" {
		rec.Status = AuditSuccess
	}

	entry := AuditLogEntry{
		ID:            uuid.New(),
		Action:        rec.Action,
		AppointmentID: rec.AppointmentID,
		PatientID:     rec.PatientID,
		Details:       rec.Details,
		Status:        rec.Status,
	}
	if rec.DoctorID != "" {
		doctorID := rec.DoctorID
		entry.DoctorID = &doctorID
	}
	if rec.ErrorMessage != "" {
		msg := rec.ErrorMessage
		entry.ErrorMessage = &msg
	}

	stored, err := r.store.InsertAuditEntry(ctx, entry)
	if err != nil {
		return nil, &AuditWriteError{Action: rec.Action, Err: err}
	}
	return stored, nil
}

// QueryByAction lists entries for one action, newest first.
func (r *AuditRecorder) QueryByAction(ctx context.Context, action AuditAction) ([]AuditLogEntry, error) {
	action = AuditAction(strings.ToUpper(strings.TrimSpace(string(action))))
	if !action.Valid() {
		return nil, invalid("action", "must be one of BOOK, CANCEL, VIEW, UPDATE")
	}
	entries, err := r.store.ListAuditEntries(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// QueryAll lists every entry, newest first.
func (r *AuditRecorder) QueryAll(ctx context.Context) ([]AuditLogEntry, error) {
	entries, err := r.store.ListAuditEntries(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
