package appointment

import (
	"context"

	"github.com/google/uuid"
)

// SlotStore persists slot availability. ClaimSlot and ReleaseSlot must be
// single atomic conditional transitions in the backing store.
type SlotStore interface {
	// ClaimSlot moves the (doctor, date, time) slot from available to booked.
	// It returns ErrSlotUnavailable when no available slot matches.
	ClaimSlot(ctx context.Context, doctorID, date, clock string) (*Slot, error)
	// ReleaseSlot moves a slot back to available. Releasing an available slot
	// returns it unchanged.
	ReleaseSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	// ListAvailableSlots returns available slots of the given doctors ordered
	// by date, time, doctor id.
	ListAvailableSlots(ctx context.Context, doctorIDs []string) ([]Slot, error)
}

type DoctorStore interface {
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
	// ListActiveDoctors returns active doctors ordered by id. A non-empty
	// department is matched case-insensitively.
	ListActiveDoctors(ctx context.Context, department string) ([]Doctor, error)
}

type PatientStore interface {
	// ResolvePatient returns the patient with the same first name, last name
	// (case-insensitive) and dob, creating it when absent.
	ResolvePatient(ctx context.Context, p Patient) (*Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// TransitionAppointment applies from -> to only if the row is still in
	// from. It returns ErrAppointmentNotFound when no row matched.
	TransitionAppointment(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, reason string) (*Appointment, error)
	ListAppointmentsByStatus(ctx context.Context, status AppointmentStatus) ([]Appointment, error)
}

// AuditStore is append-only: there is no update or delete.
type AuditStore interface {
	InsertAuditEntry(ctx context.Context, e AuditLogEntry) (*AuditLogEntry, error)
	// ListAuditEntries returns entries newest first; an empty action lists all.
	ListAuditEntries(ctx context.Context, action AuditAction) ([]AuditLogEntry, error)
	// ListAuditEntriesAfter returns up to limit entries with Seq > afterSeq in Seq
	// order. A limit of zero or less returns no entries.
	ListAuditEntriesAfter(ctx context.Context, afterSeq int64, limit int) ([]AuditLogEntry, error)
}

// Store bundles every contract; PgRepository and MemoryStore implement it.
type Store interface {
	SlotStore
	DoctorStore
	PatientStore
	AppointmentStore
	AuditStore
}
