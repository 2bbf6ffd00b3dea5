package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSlots(t *testing.T) {
	mem := newTestStore(t)
	ctx := context.Background()

	_, err := mem.AddSlot("doc001", testDate, testTime, 30)
	require.Error(t, err)
	_, err = mem.AddSlot("doc404", testDate, testTime, 30)
	require.ErrorIs(t, err, ErrDoctorNotFound)

	slot, err := mem.ClaimSlot(ctx, "doc001", testDate, testTime)
	require.NoError(t, err)

	_, err = mem.ClaimSlot(ctx, "doc001", testDate, testTime)
	require.ErrorIs(t, err, ErrSlotUnavailable)

	for i := 0; i < 2; i++ {
		released, err := mem.ReleaseSlot(ctx, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, SlotAvailable, released.Status)
	}

	_, err = mem.ReleaseSlot(ctx, uuid.New())
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestMemoryStoreOneLiveAppointmentPerSlot(t *testing.T) {
	mem := newTestStore(t)
	ctx := context.Background()

	slot, err := mem.ClaimSlot(ctx, "doc001", testDate, testTime)
	require.NoError(t, err)
	p, err := mem.ResolvePatient(ctx, Patient{FirstName: "A", LastName: "B", DOB: "1990-01-01"})
	require.NoError(t, err)

	first, err := mem.CreateAppointment(ctx, Appointment{ID: uuid.New(), PatientID: p.ID, DoctorID: "doc001", SlotID: &slot.ID})
	require.NoError(t, err)

	_, err = mem.CreateAppointment(ctx, Appointment{ID: uuid.New(), PatientID: p.ID, DoctorID: "doc001", SlotID: &slot.ID})
	require.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = mem.TransitionAppointment(ctx, first.ID, StatusBooked, StatusCancelled, "")
	require.NoError(t, err)

	_, err = mem.TransitionAppointment(ctx, first.ID, StatusBooked, StatusCancelled, "")
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = mem.CreateAppointment(ctx, Appointment{ID: uuid.New(), PatientID: p.ID, DoctorID: "doc001", SlotID: &slot.ID})
	require.NoError(t, err)
}

func TestMemoryStoreAuditPaging(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	for _, a := range []AuditAction{ActionBook, ActionBook, ActionCancel, ActionView} {
		_, err := mem.InsertAuditEntry(ctx, AuditLogEntry{ID: uuid.New(), Action: a, Status: AuditSuccess})
		require.NoError(t, err)
	}

	page, err := mem.ListAuditEntriesAfter(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].Seq)
	assert.Equal(t, int64(3), page[1].Seq)

	books, err := mem.ListAuditEntries(ctx, ActionBook)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, int64(2), books[0].Seq)

	rest, err := mem.ListAuditEntriesAfter(ctx, 4, 10)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestMemoryStoreAuditPagingZeroLimit(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	_, err := mem.InsertAuditEntry(ctx, AuditLogEntry{ID: uuid.New(), Action: ActionBook, Status: AuditSuccess})
	require.NoError(t, err)

	for _, limit := range []int{0, -1} {
		page, err := mem.ListAuditEntriesAfter(ctx, 0, limit)
		require.NoError(t, err)
		assert.NotNil(t, page)
		assert.Empty(t, page)
	}
}

func TestMemoryStoreAuditEntriesAreImmutable(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	apptID := uuid.New()
	want := apptID
	doctor := "doc001"
	msg := "boom"
	in := AuditLogEntry{
		ID:            uuid.New(),
		Action:        ActionBook,
		AppointmentID: &apptID,
		DoctorID:      &doctor,
		Status:        AuditFailure,
		ErrorMessage:  &msg,
	}

	stored, err := mem.InsertAuditEntry(ctx, in)
	require.NoError(t, err)

	apptID = uuid.New()
	doctor = "doc999"
	msg = "rewritten"
	*stored.DoctorID = "doc777"

	listed, err := mem.ListAuditEntries(ctx, "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	*listed[0].ErrorMessage = "tampered"

	paged, err := mem.ListAuditEntriesAfter(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	*paged[0].AppointmentID = uuid.Nil

	again, err := mem.ListAuditEntries(ctx, "")
	require.NoError(t, err)
	require.Len(t, again, 1)
	got := again[0]
	assert.Equal(t, want, *got.AppointmentID)
	assert.Equal(t, "doc001", *got.DoctorID)
	assert.Equal(t, "boom", *got.ErrorMessage)
}
