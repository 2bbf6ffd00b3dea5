package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/appointment-booking/internal/observability"
)

const (
	CancelStatusCancelled        = "cancelled"
	CancelStatusAlreadyCancelled = "already_cancelled"

	rollbackReason    = "booking rolled back"
	compensateTimeout = 5 * time.Second
	releaseAttempts   = 3

	// orphanGrace must outlast compensateTimeout so a cancel still releasing
	// its slot is never mistaken for one that gave up.
	orphanGrace = 2 * compensateTimeout
)

var tracer = otel.Tracer("github.com/hackgods/appointment-booking/internal/appointment")

type BookingRequest struct {
	DoctorID          string
	FirstName         string
	LastName          string
	DOB               string
	InsuranceProvider string
	Reason            string
	RequestedDatetime string
}

type Booking struct {
	Appointment Appointment
	Patient     Patient
	Slot        Slot
}

type CancelResult struct {
	Status        string
	AppointmentID uuid.UUID
}

type PatientRequest struct {
	FirstName         string
	LastName          string
	DOB               string
	InsuranceProvider string
}

type Options struct {
	AuditPolicy AuditPolicy
	Location    *time.Location
	Logger      zerolog.Logger
	Metrics     *observability.BookingMetrics
	Now         func() time.Time
}

// Service is the booking orchestrator. Book and Cancel span several stores
// without a shared transaction, so a failure after the slot claim is undone
// by compensation: the created appointment is cancelled and the slot released.
type Service struct {
	slots    *SlotAllocator
	ledger   *AppointmentLedger
	audit    *AuditRecorder
	patients PatientStore

	policy  AuditPolicy
	loc     *time.Location
	log     zerolog.Logger
	metrics *observability.BookingMetrics
	now     func() time.Time
}

func NewService(store Store, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AuditPolicy == "" {
		opts.AuditPolicy = AuditLenient
	}
	return &Service{
		slots:    NewSlotAllocator(store, store),
		ledger:   NewAppointmentLedger(store, opts.Location),
		audit:    NewAuditRecorder(store),
		patients: store,
		policy:   opts.AuditPolicy,
		loc:      opts.Location,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
}

// Book claims a slot and creates a booked appointment for the patient.
func (s *Service) Book(ctx context.Context, req BookingRequest) (booking *Booking, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Book", trace.WithAttributes(
		attribute.String("doctor_id", req.DoctorID),
		attribute.String("requested_datetime", req.RequestedDatetime),
	))
	start := time.Now()
	defer func() {
		s.metrics.ObserveBooking(outcomeLabel(err, "booked"), time.Since(start).Seconds())
		endSpan(span, err)
	}()

	now := s.now()
	requested, dob, err := s.validateBooking(req, now)
	if err != nil {
		return nil, err
	}

	date, clock := SlotKey(requested, s.loc)
	slot, err := s.slots.FindAndClaim(ctx, req.DoctorID, date, clock)
	if err != nil {
		s.recordFailure(ctx, ActionBook, nil, nil, req.DoctorID, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("slot_id", slot.ID.String()))

	patient, err := s.patients.ResolvePatient(ctx, Patient{
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		DOB:               dob,
		InsuranceProvider: strings.TrimSpace(req.InsuranceProvider),
	})
	if err != nil {
		return nil, s.rollbackBooking(ctx, slot, nil, fmt.Errorf("resolve patient: %w", err))
	}

	appt, err := s.ledger.Create(ctx, NewAppointment{
		PatientID:         patient.ID,
		DoctorID:          slot.DoctorID,
		SlotID:            &slot.ID,
		Reason:            strings.TrimSpace(req.Reason),
		RequestedDatetime: req.RequestedDatetime,
	})
	if err != nil {
		return nil, s.rollbackBooking(ctx, slot, nil, err)
	}

	details := fmt.Sprintf("booked slot %s %s with %s for %s %s", slot.Date, slot.Time, slot.DoctorID, patient.FirstName, patient.LastName)
	if _, err := s.audit.Record(ctx, AuditRecord{
		Action:        ActionBook,
		AppointmentID: &appt.ID,
		PatientID:     &patient.ID,
		DoctorID:      slot.DoctorID,
		Details:       details,
		Status:        AuditSuccess,
	}); err != nil {
		if s.policy == AuditStrict {
			return nil, s.rollbackBooking(ctx, slot, appt, err)
		}
		s.auditFailed(ActionBook, appt.ID, err)
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID).
		Str("slot_id", slot.ID.String()).
		Msg("appointment booked")

	return &Booking{Appointment: *appt, Patient: *patient, Slot: *slot}, nil
}

func (s *Service) validateBooking(req BookingRequest, now time.Time) (time.Time, string, error) {
	if strings.TrimSpace(req.FirstName) == "" {
		return time.Time{}, "", invalid("first_name", "is required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		return time.Time{}, "", invalid("last_name", "is required")
	}
	dob, err := ParseDOB(req.DOB, now)
	if err != nil {
		return time.Time{}, "", err
	}
	requested, err := ParseRequestedTime(req.RequestedDatetime, s.loc)
	if err != nil {
		return time.Time{}, "", err
	}
	if !requested.After(now) {
		return time.Time{}, "", invalid("requested_datetime", "cannot book appointment for past date/time: %s", req.RequestedDatetime)
	}
	// Slot starts are whole seconds; a fractional time would match a slot by
	// its truncated key yet store a different requested_datetime.
	if requested.Nanosecond() != 0 {
		return time.Time{}, "", invalid("requested_datetime", "must fall on a slot start, got %s", req.RequestedDatetime)
	}
	return requested, dob, nil
}

// rollbackBooking undoes a claimed slot (and the appointment, when created)
// after a later step failed. It runs detached from the request context so a
// cancelled request still compensates.
func (s *Service) rollbackBooking(ctx context.Context, slot *Slot, appt *Appointment, cause error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	var errs []error
	var apptID *uuid.UUID
	if appt != nil {
		apptID = &appt.ID
		if _, _, err := s.ledger.Cancel(cctx, appt.ID, rollbackReason); err != nil {
			errs = append(errs, fmt.Errorf("cancel appointment %s: %w", appt.ID, err))
		}
	}
	if err := s.releaseSlot(cctx, slot.ID); err != nil {
		errs = append(errs, err)
	}

	s.recordFailure(cctx, ActionBook, apptID, nil, slot.DoctorID, cause)

	if len(errs) > 0 {
		rbErr := errors.Join(errs...)
		s.metrics.ObserveRollback("failed")
		s.log.Error().
			Err(cause).
			AnErr("rollback_error", rbErr).
			Str("slot_id", slot.ID.String()).
			Msg("booking rollback failed, slot may be left booked")
		return &RollbackError{Cause: cause, Rollback: rbErr}
	}

	s.metrics.ObserveRollback("ok")
	s.log.Warn().
		Err(cause).
		Str("slot_id", slot.ID.String()).
		Msg("booking rolled back")
	return cause
}

func (s *Service) releaseSlot(ctx context.Context, slotID uuid.UUID) error {
	var err error
	for attempt := 1; attempt <= releaseAttempts; attempt++ {
		if _, err = s.slots.Release(ctx, slotID); err == nil {
			return nil
		}
		if errors.Is(err, ErrSlotNotFound) || ctx.Err() != nil || attempt == releaseAttempts {
			break
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return fmt.Errorf("release slot %s: %w", slotID, err)
}

// Cancel cancels a booked appointment and frees its slot. Cancelling twice
// reports already_cancelled and releases nothing, unless an earlier cancel
// failed to free the slot; that slot is released on the retry.
func (s *Service) Cancel(ctx context.Context, rawID, reason string) (result *CancelResult, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Cancel", trace.WithAttributes(
		attribute.String("appointment_id", rawID),
	))
	defer func() {
		label := outcomeLabel(err, CancelStatusCancelled)
		if err == nil {
			label = result.Status
		}
		s.metrics.ObserveCancellation(label)
		endSpan(span, err)
	}()

	id, err := parseID("appointment_id", rawID)
	if err != nil {
		return nil, err
	}

	current, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCancelled {
		return s.alreadyCancelled(ctx, current)
	}

	appt, already, err := s.ledger.Cancel(ctx, id, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	if already {
		return s.alreadyCancelled(ctx, appt)
	}

	// The transition is committed; the rest must finish even if the caller left.
	ctx = context.WithoutCancel(ctx)
	if appt.SlotID != nil {
		if err := s.releaseDetached(ctx, *appt.SlotID); err != nil {
			s.log.Error().
				Err(err).
				Str("appointment_id", id.String()).
				Str("slot_id", appt.SlotID.String()).
				Msg("appointment cancelled but slot release failed")
			if _, auditErr := s.audit.Record(ctx, AuditRecord{
				Action:        ActionCancel,
				AppointmentID: &appt.ID,
				PatientID:     &appt.PatientID,
				DoctorID:      appt.DoctorID,
				Details:       cancelDetails(appt) + "; slot " + appt.SlotID.String() + " still booked",
				Status:        AuditFailure,
				ErrorMessage:  err.Error(),
			}); auditErr != nil {
				s.auditFailed(ActionCancel, appt.ID, auditErr)
			}
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}

	if _, err := s.audit.Record(ctx, AuditRecord{
		Action:        ActionCancel,
		AppointmentID: &appt.ID,
		PatientID:     &appt.PatientID,
		DoctorID:      appt.DoctorID,
		Details:       cancelDetails(appt),
		Status:        AuditSuccess,
	}); err != nil {
		s.auditFailed(ActionCancel, appt.ID, err)
		if s.policy == AuditStrict {
			return nil, err
		}
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Msg("appointment cancelled")

	return &CancelResult{Status: CancelStatusCancelled, AppointmentID: id}, nil
}

// releaseDetached frees a slot on a context that survives the request, so a
// client disconnect after the ledger transition does not strand the slot.
func (s *Service) releaseDetached(ctx context.Context, slotID uuid.UUID) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	return s.releaseSlot(cctx, slotID)
}

func (s *Service) alreadyCancelled(ctx context.Context, appt *Appointment) (*CancelResult, error) {
	if err := s.releaseOrphanedSlot(ctx, appt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return &CancelResult{Status: CancelStatusAlreadyCancelled, AppointmentID: appt.ID}, nil
}

// releaseOrphanedSlot frees the slot of a cancelled appointment when it is
// still booked by that appointment: nothing claimed it after the cancellation
// and the cancelling call has had time to finish its own release.
func (s *Service) releaseOrphanedSlot(ctx context.Context, appt *Appointment) error {
	if appt.SlotID == nil || appt.CancelledAt == nil {
		return nil
	}
	if s.now().Sub(*appt.CancelledAt) < orphanGrace {
		return nil
	}

	slot, err := s.slots.Get(ctx, *appt.SlotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil
		}
		return err
	}
	if slot.Status != SlotBooked || slot.UpdatedAt.After(*appt.CancelledAt) {
		return nil
	}

	if err := s.releaseDetached(ctx, slot.ID); err != nil {
		s.log.Error().
			Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("slot_id", slot.ID.String()).
			Msg("orphaned slot release failed")
		return err
	}

	if _, err := s.audit.Record(ctx, AuditRecord{
		Action:        ActionUpdate,
		AppointmentID: &appt.ID,
		PatientID:     &appt.PatientID,
		DoctorID:      appt.DoctorID,
		Details:       fmt.Sprintf("released slot %s left booked by cancelled appointment", slot.ID),
		Status:        AuditSuccess,
	}); err != nil {
		s.auditFailed(ActionUpdate, appt.ID, err)
	}

	s.log.Warn().
		Str("appointment_id", appt.ID.String()).
		Str("slot_id", slot.ID.String()).
		Msg("released orphaned slot")
	return nil
}

func cancelDetails(a *Appointment) string {
	d := fmt.Sprintf("cancelled appointment with %s at %s", a.DoctorID, a.RequestedDatetime.Format(time.RFC3339))
	if a.CancellationReason != nil && *a.CancellationReason != "" {
		d += ": " + *a.CancellationReason
	}
	return d
}

func (s *Service) Get(ctx context.Context, rawID string) (*Appointment, error) {
	id, err := parseID("appointment_id", rawID)
	if err != nil {
		return nil, err
	}
	return s.ledger.GetByID(ctx, id)
}

func (s *Service) ListBooked(ctx context.Context) ([]Appointment, error) {
	return s.ledger.ListBooked(ctx)
}

func (s *Service) ListAvailableSlots(ctx context.Context, department string) ([]DoctorAvailability, error) {
	return s.slots.ListAvailable(ctx, department)
}

func (s *Service) ListDoctors(ctx context.Context) ([]DoctorAvailability, error) {
	return s.slots.ListDoctors(ctx)
}

// ListAuditLogs returns the audit trail newest first, optionally for one action.
func (s *Service) ListAuditLogs(ctx context.Context, action string) ([]AuditLogEntry, error) {
	if strings.TrimSpace(action) == "" {
		return s.audit.QueryAll(ctx)
	}
	return s.audit.QueryByAction(ctx, AuditAction(action))
}

func (s *Service) RegisterPatient(ctx context.Context, req PatientRequest) (*Patient, error) {
	if strings.TrimSpace(req.FirstName) == "" {
		return nil, invalid("first_name", "is required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		return nil, invalid("last_name", "is required")
	}
	dob, err := ParseDOB(req.DOB, s.now())
	if err != nil {
		return nil, err
	}
	p, err := s.patients.ResolvePatient(ctx, Patient{
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		DOB:               dob,
		InsuranceProvider: strings.TrimSpace(req.InsuranceProvider),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}
	return p, nil
}

// recordFailure writes a FAILURE entry. It is best effort: its own error is
// only logged.
func (s *Service) recordFailure(ctx context.Context, action AuditAction, apptID, patientID *uuid.UUID, doctorID string, cause error) {
	_, err := s.audit.Record(ctx, AuditRecord{
		Action:        action,
		AppointmentID: apptID,
		PatientID:     patientID,
		DoctorID:      doctorID,
		Details:       strings.ToLower(string(action)) + " failed",
		Status:        AuditFailure,
		ErrorMessage:  cause.Error(),
	})
	if err != nil {
		s.metrics.ObserveAuditFailure(string(action))
		s.log.Warn().Err(err).Str("action", string(action)).Msg("failure audit entry not recorded")
	}
}

func (s *Service) auditFailed(action AuditAction, apptID uuid.UUID, err error) {
	s.metrics.ObserveAuditFailure(string(action))
	s.log.Error().
		Err(err).
		Str("action", string(action)).
		Str("appointment_id", apptID.String()).
		Str("policy", string(s.policy)).
		Msg("audit write failed")
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, invalid(field, "must be a valid UUID")
	}
	return id, nil
}

func outcomeLabel(err error, success string) string {
	if err == nil {
		return success
	}
	switch Kind(err) {
	case ErrValidation:
		return "validation"
	case ErrNotFound:
		return "not_found"
	case ErrConflict:
		return "conflict"
	}
	return "internal"
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
