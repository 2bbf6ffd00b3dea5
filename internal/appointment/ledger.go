package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type NewAppointment struct {
	PatientID         uuid.UUID
	DoctorID          string
	SlotID            *uuid.UUID
	Reason            string
	RequestedDatetime string
}

// AppointmentLedger owns appointment records and their status transitions.
// Appointments are never deleted; they end in a terminal status.
type AppointmentLedger struct {
	store AppointmentStore
	loc   *time.Location
}

func NewAppointmentLedger(store AppointmentStore, loc *time.Location) *AppointmentLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentLedger{store: store, loc: loc}
}

func (l *AppointmentLedger) Create(ctx context.Context, in NewAppointment) (*Appointment, error) {
	requested, err := ParseRequestedTime(in.RequestedDatetime, l.loc)
	if err != nil {
		return nil, err
	}
	if in.PatientID == uuid.Nil {
		return nil, invalid("patient_id", "is required")
	}
	if strings.TrimSpace(in.DoctorID) == "" {
		return nil, invalid("doctor_id", "is required")
	}

	appt, err := l.store.CreateAppointment(ctx, Appointment{
		ID:                uuid.New(),
		PatientID:         in.PatientID,
		DoctorID:          in.DoctorID,
		SlotID:            in.SlotID,
		Reason:            in.Reason,
		Status:            StatusBooked,
		RequestedDatetime: requested,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return appt, nil
}

func (l *AppointmentLedger) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := l.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// Cancel moves a booked appointment to cancelled. A second cancel returns the
// stored record with alreadyCancelled set so the caller does not release the
// slot twice. Completed and no-show appointments cannot be cancelled.
func (l *AppointmentLedger) Cancel(ctx context.Context, id uuid.UUID, reason string) (appt *Appointment, alreadyCancelled bool, err error) {
	updated, err := l.store.TransitionAppointment(ctx, id, StatusBooked, StatusCancelled, reason)
	if err == nil {
		return updated, false, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, false, fmt.Errorf("cancel appointment: %w", err)
	}

	// The conditional update matched nothing: either the id is unknown or the
	// appointment already left booked.
	current, err := l.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	switch current.Status {
	case StatusCancelled:
		return current, true, nil
	case StatusBooked:
		// Transitions are monotonic, so booked here means the store lied.
		return nil, false, fmt.Errorf("appointment %s changed concurrently: %w", id, ErrInvalidStatusTransition)
	default:
		return nil, false, fmt.Errorf("cannot cancel %s appointment: %w", current.Status, ErrInvalidStatusTransition)
	}
}

// ListBooked returns booked appointments ordered by requested time ascending.
func (l *AppointmentLedger) ListBooked(ctx context.Context) ([]Appointment, error) {
	appts, err := l.store.ListAppointmentsByStatus(ctx, StatusBooked)
	if err != nil {
		return nil, fmt.Errorf("list booked appointments: %w", err)
	}
	return appts, nil
}
