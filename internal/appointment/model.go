package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Terminal reports whether no further transition may leave the status.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// CanTransition encodes the appointment state machine. Only booked has outgoing edges.
func CanTransition(from, to AppointmentStatus) bool {
	if from != StatusBooked {
		return false
	}
	switch to {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

type AuditAction string

const (
	ActionBook   AuditAction = "BOOK"
	ActionCancel AuditAction = "CANCEL"
	ActionView   AuditAction = "VIEW"
	ActionUpdate AuditAction = "UPDATE"
)

func (a AuditAction) Valid() bool {
	switch a {
	case ActionBook, ActionCancel, ActionView, ActionUpdate:
		return true
	}
	return false
}

type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailure AuditStatus = "FAILURE"
)

type Doctor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	Specialization string `json:"specialization"`
	Experience     int    `json:"experience"`
	IsActive       bool   `json:"is_active"`
}

type Patient struct {
	ID                uuid.UUID `json:"id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	DOB               string    `json:"dob"`
	InsuranceProvider string    `json:"insurance_provider"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Slot dates and times are clinic wall-clock values: Date is YYYY-MM-DD and
// Time is HH:MM:SS, so lexical order matches chronological order.
type Slot struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        string     `json:"doctor_id"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          SlotStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Appointment struct {
	ID                 uuid.UUID         `json:"id"`
	PatientID          uuid.UUID         `json:"patient_id"`
	DoctorID           string            `json:"doctor_id"`
	SlotID             *uuid.UUID        `json:"slot_id,omitempty"`
	Reason             string            `json:"reason"`
	Status             AppointmentStatus `json:"status"`
	RequestedDatetime  time.Time         `json:"requested_datetime"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// AuditLogEntry is append-only. Seq is assigned by the store and totally
// orders entries; the relay uses it as its cursor.
type AuditLogEntry struct {
	ID            uuid.UUID   `json:"id"`
	Seq           int64       `json:"seq"`
	Action        AuditAction `json:"action"`
	AppointmentID *uuid.UUID  `json:"appointment_id,omitempty"`
	PatientID     *uuid.UUID  `json:"patient_id,omitempty"`
	DoctorID      *string     `json:"doctor_id,omitempty"`
	Details       string      `json:"details"`
	Status        AuditStatus `json:"status"`
	ErrorMessage  *string     `json:"error_message,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// DoctorAvailability groups a doctor with its available slots ordered by date, time.
type DoctorAvailability struct {
	Doctor Doctor
	Slots  []Slot
}
