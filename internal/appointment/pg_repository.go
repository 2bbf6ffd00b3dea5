package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is the subset of pgxpool.Pool the repository uses. pgxmock pools
// satisfy it too.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const defaultAuditSettle = 2 * time.Second

type PgRepository struct {
	db dbtx

	// auditSettle hides audit rows younger than this from forward paging.
	// seq is taken at insert but rows show up at commit, so a fresh row can
	// become visible after a higher seq was already read.
	auditSettle time.Duration
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool, auditSettle: defaultAuditSettle}
}

func newPgRepositoryWithDB(db dbtx) *PgRepository {
	return &PgRepository{db: db, auditSettle: defaultAuditSettle}
}

// WithAuditSettle overrides the settle window used by ListAuditEntriesAfter.
func (r *PgRepository) WithAuditSettle(d time.Duration) *PgRepository {
	if d >= 0 {
		r.auditSettle = d
	}
	return r
}

var _ Store = (*PgRepository)(nil)

const (
	doctorColumns      = `d.id, d.name, dep.name, d.specialization, d.experience, d.is_active`
	patientColumns     = `id, first_name, last_name, dob::text, insurance_provider, created_at, updated_at`
	slotColumns        = `id, doctor_id, slot_date::text, slot_time::text, duration_minutes, status, created_at, updated_at`
	appointmentColumns = `id, patient_id, doctor_id, slot_id, reason, status, requested_datetime, cancelled_at, cancellation_reason, created_at, updated_at`
)

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialization *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Department,
		&specialization,
		&d.Experience,
		&d.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	if specialization != nil {
		d.Specialization = *specialization
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var insurance *string

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.DOB,
		&insurance,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	if insurance != nil {
		p.InsuranceProvider = *insurance
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.Time,
		&s.DurationMinutes,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.SlotID,
		&a.Reason,
		&a.Status,
		&a.RequestedDatetime,
		&a.CancelledAt,
		&a.CancellationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Doctors

func (r *PgRepository) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		JOIN departments dep ON dep.id = d.department_id
		WHERE d.id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListActiveDoctors(ctx context.Context, department string) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		JOIN departments dep ON dep.id = d.department_id
		WHERE d.is_active
		  AND ($1 = '' OR lower(dep.name) = lower($1))
		ORDER BY d.id
	`, department)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	return collect(rows, scanDoctor)
}

// Patients

// ResolvePatient returns the patient with the same name and date of birth,
// creating it when absent. A newer insurance provider overwrites the stored one.
func (r *PgRepository) ResolvePatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, dob, insurance_provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, NULLIF($5, ''), now(), now())
		ON CONFLICT (lower(first_name), lower(last_name), dob) DO UPDATE
		SET insurance_provider = COALESCE(EXCLUDED.insurance_provider, patients.insurance_provider),
		    updated_at = now()
		RETURNING `+patientColumns+`
	`, uuid.New(), p.FirstName, p.LastName, p.DOB, p.InsuranceProvider)

	patient, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("upsert patient: %w", err)
	}
	return patient, nil
}

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// Slots

// ClaimSlot flips one available slot to booked in a single conditional
// update, so concurrent claims for the same slot have exactly one winner.
func (r *PgRepository) ClaimSlot(ctx context.Context, doctorID, date, clock string) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE available_slots
		SET status = 'booked',
		    updated_at = now()
		WHERE doctor_id = $1
		  AND slot_date = $2::date
		  AND slot_time = $3::time
		  AND status = 'available'
		RETURNING `+slotColumns+`
	`, doctorID, date, clock)

	slot, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, ErrSlotUnavailable
	}
	return slot, err
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE available_slots
		SET status = 'available',
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM available_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, doctorIDs []string) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM available_slots
		WHERE doctor_id = ANY($1)
		  AND status = 'available'
		ORDER BY slot_date, slot_time, doctor_id
	`, doctorIDs)
	if err != nil {
		return nil, fmt.Errorf("query available slots: %w", err)
	}
	return collect(rows, scanSlot)
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, slot_id, reason, status, requested_datetime, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'booked', $6, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.DoctorID, a.SlotID, a.Reason, a.RequestedDatetime)

	appt, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("slot already has a live appointment: %w", ErrSlotUnavailable)
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// TransitionAppointment moves id from one status to another only if it still
// holds from. No matching row yields ErrAppointmentNotFound.
func (r *PgRepository) TransitionAppointment(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, reason string) (*Appointment, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidStatusTransition)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END,
		    cancellation_reason = CASE WHEN $2 = 'cancelled' THEN NULLIF($4, '') ELSE cancellation_reason END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from), reason)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByStatus(ctx context.Context, status AppointmentStatus) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		ORDER BY requested_datetime, id
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	return collect(rows, scanAppointment)
}
