package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres upserts departments, doctors and the slot calendar in one
// transaction. Existing rows are left alone, so reruns only fill gaps.
// It returns the number of slots inserted.
func Postgres(ctx context.Context, db txBeginner, doctors []appointment.Doctor, dates []string) (int64, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, name := range Departments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO departments (name)
			VALUES ($1)
			ON CONFLICT (name) DO NOTHING
		`, name); err != nil {
			return 0, fmt.Errorf("insert department %s: %w", name, err)
		}
	}

	for _, d := range doctors {
		if _, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, department_id, specialization, experience, is_active, created_at, updated_at)
			SELECT $1, $2, dep.id, $4, $5, $6, now(), now()
			FROM departments dep
			WHERE dep.name = $3
			ON CONFLICT (id) DO NOTHING
		`, d.ID, d.Name, d.Department, d.Specialization, d.Experience, d.IsActive); err != nil {
			return 0, fmt.Errorf("insert doctor %s: %w", d.ID, err)
		}
	}

	var inserted int64
	for _, d := range doctors {
		for _, date := range dates {
			for _, clock := range SlotTimes {
				tag, err := tx.Exec(ctx, `
					INSERT INTO available_slots (doctor_id, slot_date, slot_time, duration_minutes)
					VALUES ($1, $2::date, $3::time, $4)
					ON CONFLICT (doctor_id, slot_date, slot_time) DO NOTHING
				`, d.ID, date, clock, SlotDurationMinutes)
				if err != nil {
					return 0, fmt.Errorf("insert slot %s %s %s: %w", d.ID, date, clock, err)
				}
				inserted += tag.RowsAffected()
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit seed tx: %w", err)
	}
	return inserted, nil
}
