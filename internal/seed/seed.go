// Package seed builds the clinic's reference data: departments, doctors and
// a weekday slot calendar.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

const SlotDurationMinutes = 30

var Departments = []string{"Cardiology", "Neurology", "Orthopedics", "Pediatrics", "Dermatology"}

var Doctors = []appointment.Doctor{
	{ID: "doc001", Name: "Dr. Sarah Johnson", Department: "Cardiology", Specialization: "Heart & Cardiovascular", Experience: 12, IsActive: true},
	{ID: "doc002", Name: "Dr. Rajesh Kumar", Department: "Neurology", Specialization: "Neurological Disorders", Experience: 15, IsActive: true},
	{ID: "doc003", Name: "Dr. Emily White", Department: "Orthopedics", Specialization: "Bone & Joint Surgery", Experience: 10, IsActive: true},
	{ID: "doc004", Name: "Dr. Michael Chen", Department: "Pediatrics", Specialization: "Child Healthcare", Experience: 8, IsActive: true},
	{ID: "doc005", Name: "Dr. Lisa Anderson", Department: "Dermatology", Specialization: "Skin Disorders", Experience: 11, IsActive: true},
}

var SlotTimes = []string{
	"09:00:00", "09:30:00", "10:00:00", "10:30:00", "11:00:00", "11:30:00",
	"14:00:00", "14:30:00", "15:00:00", "15:30:00", "16:00:00", "16:30:00",
}

// Calendar returns the weekday dates in [from, from+days).
func Calendar(from time.Time, days int) []string {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	var out []string
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d.Format(appointment.DateLayout))
	}
	return out
}

// ExtraDoctors invents count additional doctors spread over the departments.
// Ids continue after the fixed roster.
func ExtraDoctors(faker *gofakeit.Faker, count int) []appointment.Doctor {
	out := make([]appointment.Doctor, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, appointment.Doctor{
			ID:             fmt.Sprintf("doc%03d", len(Doctors)+i+1),
			Name:           "Dr. " + faker.FirstName() + " " + faker.LastName(),
			Department:     Departments[faker.Number(0, len(Departments)-1)],
			Specialization: faker.JobDescriptor() + " Medicine",
			Experience:     faker.Number(1, 35),
			IsActive:       true,
		})
	}
	return out
}

// Memory loads doctors and their calendar into an in-memory store.
func Memory(_ context.Context, store *appointment.MemoryStore, doctors []appointment.Doctor, dates []string) (int, error) {
	created := 0
	for _, d := range doctors {
		store.AddDoctor(d)
		for _, date := range dates {
			for _, clock := range SlotTimes {
				if _, err := store.AddSlot(d.ID, date, clock, SlotDurationMinutes); err != nil {
					return created, fmt.Errorf("add slot %s %s %s: %w", d.ID, date, clock, err)
				}
				created++
			}
		}
	}
	return created, nil
}
