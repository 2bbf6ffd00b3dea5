package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestedTime(t *testing.T) {
	ny := time.FixedZone("EST", -5*60*60)

	tests := []struct {
		raw  string
		loc  *time.Location
		want time.Time
	}{
		{"2030-01-07T09:00:00", time.UTC, time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)},
		{"2030-01-07T09:00", time.UTC, time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)},
		{"2030-01-07 09:30:00", time.UTC, time.Date(2030, 1, 7, 9, 30, 0, 0, time.UTC)},
		{"2030-01-07T14:00:00Z", ny, time.Date(2030, 1, 7, 9, 0, 0, 0, ny)},
		{"2030-01-07T09:00:00", ny, time.Date(2030, 1, 7, 9, 0, 0, 0, ny)},
		{" 2030-01-07T09:00:00.000 ", nil, time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRequestedTime(tt.raw, tt.loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)

			date, clock := SlotKey(got, tt.loc)
			assert.Equal(t, tt.want.Format(DateLayout), date)
			assert.Equal(t, tt.want.Format(ClockLayout), clock)
		})
	}

	for _, raw := range []string{"", "2030-01-07", "07/01/2030 09:00", "tomorrow"} {
		_, err := ParseRequestedTime(raw, time.UTC)
		assert.ErrorIs(t, err, ErrValidation, raw)
	}
}

func TestParseDOB(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	dob, err := ParseDOB(" 1985-06-15 ", now)
	require.NoError(t, err)
	assert.Equal(t, "1985-06-15", dob)

	_, err = ParseDOB("2026-10-19", now)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseDOB("1985-6-15", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSlotStartsAt(t *testing.T) {
	s := Slot{Date: testDate, Time: "14:30:00"}

	at, err := s.StartsAt(nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 7, 14, 30, 0, 0, time.UTC), at)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusBooked, StatusCancelled))
	assert.True(t, CanTransition(StatusBooked, StatusCompleted))
	assert.True(t, CanTransition(StatusBooked, StatusNoShow))
	assert.False(t, CanTransition(StatusBooked, StatusBooked))
	assert.False(t, CanTransition(StatusCancelled, StatusBooked))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
	assert.True(t, StatusNoShow.Terminal())
	assert.False(t, StatusBooked.Terminal())
}

func TestKindClassification(t *testing.T) {
	assert.Equal(t, ErrValidation, Kind(invalid("dob", "bad")))
	assert.Equal(t, ErrNotFound, Kind(ErrDoctorNotFound))
	assert.Equal(t, ErrConflict, Kind(ErrSlotUnavailable))
	assert.Equal(t, ErrInternal, Kind(&AuditWriteError{Action: ActionBook, Err: assert.AnError}))
	assert.Equal(t, ErrInternal, Kind(&RollbackError{Cause: ErrSlotUnavailable, Rollback: assert.AnError}))
	assert.Equal(t, ErrInternal, Kind(assert.AnError))
}
