package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	slotCols = []string{"id", "doctor_id", "slot_date", "slot_time", "duration_minutes", "status", "created_at", "updated_at"}
	apptCols = []string{"id", "patient_id", "doctor_id", "slot_id", "reason", "status", "requested_datetime", "cancelled_at", "cancellation_reason", "created_at", "updated_at"}
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPgRepositoryWithDB(mock), mock
}

func strPtr(s string) *string { return &s }

func TestPgClaimSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	now := time.Now()
	slotID := uuid.New()

	mock.ExpectQuery(`UPDATE available_slots`).
		WithArgs("doc001", testDate, testTime).
		WillReturnRows(pgxmock.NewRows(slotCols).
			AddRow(slotID, "doc001", testDate, testTime, 30, "booked", now, now))

	slot, err := repo.ClaimSlot(ctx, "doc001", testDate, testTime)
	require.NoError(t, err)
	assert.Equal(t, slotID, slot.ID)
	assert.Equal(t, SlotBooked, slot.Status)
	assert.Equal(t, 30, slot.DurationMinutes)

	mock.ExpectQuery(`UPDATE available_slots`).
		WithArgs("doc001", testDate, testTime).
		WillReturnRows(pgxmock.NewRows(slotCols))

	_, err = repo.ClaimSlot(ctx, "doc001", testDate, testTime)
	require.ErrorIs(t, err, ErrSlotUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgReleaseUnknownSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE available_slots`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols))

	_, err := repo.ReleaseSlot(context.Background(), id)
	require.ErrorIs(t, err, ErrSlotNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListActiveDoctors(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM doctors d`).
		WithArgs("cardiology").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "department", "specialization", "experience", "is_active"}).
			AddRow("doc001", "Dr. Sarah Johnson", "Cardiology", strPtr("Interventional Cardiology"), 15, true).
			AddRow("doc006", "Dr. New Hire", "Cardiology", nil, 1, true))

	doctors, err := repo.ListActiveDoctors(context.Background(), "cardiology")
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, "Interventional Cardiology", doctors[0].Specialization)
	assert.Empty(t, doctors[1].Specialization)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetDoctorNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM doctors d`).
		WithArgs("doc999").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "department", "specialization", "experience", "is_active"}))

	_, err := repo.GetDoctor(context.Background(), "doc999")
	require.ErrorIs(t, err, ErrDoctorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgResolvePatient(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO patients`).
		WithArgs(pgxmock.AnyArg(), "John", "Doe", "1985-06-15", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "first_name", "last_name", "dob", "insurance_provider", "created_at", "updated_at"}).
			AddRow(id, "John", "Doe", "1985-06-15", strPtr("BlueCross"), now, now))

	p, err := repo.ResolvePatient(context.Background(), Patient{FirstName: "John", LastName: "Doe", DOB: "1985-06-15"})
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "BlueCross", p.InsuranceProvider)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateAppointmentUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID := uuid.New()
	a := Appointment{
		ID:                uuid.New(),
		PatientID:         uuid.New(),
		DoctorID:          "doc001",
		SlotID:            &slotID,
		Reason:            "checkup",
		RequestedDatetime: time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(a.ID, a.PatientID, a.DoctorID, a.SlotID, a.Reason, a.RequestedDatetime).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	_, err := repo.CreateAppointment(context.Background(), a)
	require.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTransitionAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	id := uuid.New()
	slotID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(id, "cancelled", "booked", "moved away").
		WillReturnRows(pgxmock.NewRows(apptCols).
			AddRow(id, uuid.New(), "doc001", &slotID, "checkup", "cancelled", now, &now, strPtr("moved away"), now, now))

	a, err := repo.TransitionAppointment(ctx, id, StatusBooked, StatusCancelled, "moved away")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)
	require.NotNil(t, a.CancellationReason)
	assert.Equal(t, "moved away", *a.CancellationReason)

	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(id, "cancelled", "booked", "").
		WillReturnRows(pgxmock.NewRows(apptCols))

	_, err = repo.TransitionAppointment(ctx, id, StatusBooked, StatusCancelled, "")
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	// Rejected before reaching the database.
	_, err = repo.TransitionAppointment(ctx, id, StatusCancelled, StatusBooked, "")
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAuditEntries(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	apptID := uuid.New()
	now := time.Now()
	cols := []string{"id", "seq", "action", "appointment_id", "patient_id", "doctor_id", "details", "status", "error_message", "created_at"}

	entry := AuditLogEntry{
		ID:            uuid.New(),
		Action:        ActionBook,
		AppointmentID: &apptID,
		DoctorID:      strPtr("doc001"),
		Details:       "booked",
		Status:        AuditSuccess,
	}
	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WithArgs(entry.ID, "BOOK", entry.AppointmentID, entry.PatientID, entry.DoctorID, "booked", "SUCCESS", entry.ErrorMessage).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(entry.ID, int64(7), "BOOK", &apptID, nil, strPtr("doc001"), strPtr("booked"), "SUCCESS", nil, now))

	stored, err := repo.InsertAuditEntry(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.Seq)
	assert.Nil(t, stored.PatientID)
	assert.Equal(t, "booked", stored.Details)

	mock.ExpectQuery(`created_at < now\(\) - make_interval`).
		WithArgs(int64(7), 50, 2.0).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.New(), int64(8), "CANCEL", &apptID, nil, nil, nil, "SUCCESS", nil, now))

	after, err := repo.ListAuditEntriesAfter(ctx, 7, 50)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, ActionCancel, after[0].Action)

	repo.WithAuditSettle(0)
	mock.ExpectQuery(`FROM audit_logs`).
		WithArgs(int64(8), 50, 0.0).
		WillReturnRows(pgxmock.NewRows(cols))

	after, err = repo.ListAuditEntriesAfter(ctx, 8, 50)
	require.NoError(t, err)
	assert.Empty(t, after)

	none, err := repo.ListAuditEntriesAfter(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	mock.ExpectQuery(`FROM audit_logs`).
		WithArgs("").
		WillReturnError(errors.New("relation does not exist"))

	_, err = repo.ListAuditEntries(ctx, "")
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListAppointmentsByStatusEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM appointments`).
		WithArgs("booked").
		WillReturnRows(pgxmock.NewRows(apptCols))

	appts, err := repo.ListAppointmentsByStatus(context.Background(), StatusBooked)
	require.NoError(t, err)
	assert.NotNil(t, appts)
	assert.Empty(t, appts)
	require.NoError(t, mock.ExpectationsWereMet())
}
