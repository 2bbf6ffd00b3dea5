package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

func TestCalendarSkipsWeekends(t *testing.T) {
	// 2026-10-16 is a Friday.
	from := time.Date(2026, 10, 16, 15, 4, 0, 0, time.UTC)

	dates := Calendar(from, 5)
	assert.Equal(t, []string{"2026-10-16", "2026-10-19", "2026-10-20"}, dates)
}

func TestExtraDoctorsContinueIDs(t *testing.T) {
	faker := gofakeit.New(42)

	extra := ExtraDoctors(faker, 3)
	require.Len(t, extra, 3)
	assert.Equal(t, "doc006", extra[0].ID)
	assert.Equal(t, "doc008", extra[2].ID)
	for _, d := range extra {
		assert.Contains(t, Departments, d.Department)
		assert.True(t, d.IsActive)
	}
}

func TestMemorySeedsBookableCalendar(t *testing.T) {
	store := appointment.NewMemoryStore()
	ctx := context.Background()

	n, err := Memory(ctx, store, Doctors[:2], []string{"2030-01-07"})
	require.NoError(t, err)
	assert.Equal(t, 2*len(SlotTimes), n)

	slot, err := store.ClaimSlot(ctx, "doc001", "2030-01-07", "09:00:00")
	require.NoError(t, err)
	assert.Equal(t, SlotDurationMinutes, slot.DurationMinutes)

	_, err = Memory(ctx, store, Doctors[:1], []string{"2030-01-07"})
	require.Error(t, err)
}

func TestPostgresSeedsInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doc := Doctors[0]
	mock.ExpectBegin()
	for _, name := range Departments {
		mock.ExpectExec(`INSERT INTO departments`).
			WithArgs(name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec(`INSERT INTO doctors`).
		WithArgs(doc.ID, doc.Name, doc.Department, doc.Specialization, doc.Experience, doc.IsActive).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for i, clock := range SlotTimes {
		rows := int64(1)
		if i == 0 {
			rows = 0
		}
		mock.ExpectExec(`INSERT INTO available_slots`).
			WithArgs(doc.ID, "2030-01-07", clock, SlotDurationMinutes).
			WillReturnResult(pgxmock.NewResult("INSERT", rows))
	}
	mock.ExpectCommit()

	inserted, err := Postgres(context.Background(), mock, []appointment.Doctor{doc}, []string{"2030-01-07"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(SlotTimes)-1), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO departments`).
		WithArgs(Departments[0]).
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	_, err = Postgres(context.Background(), mock, Doctors, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
