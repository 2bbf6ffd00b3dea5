package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

type BookAppointmentRequest struct {
	DoctorID          string `json:"doctor_id"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	DOB               string `json:"dob"`
	InsuranceProvider string `json:"insurance_provider"`
	Reason            string `json:"reason"`
	RequestedDatetime string `json:"requested_datetime"`
}

type CancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}

type CreatePatientRequest struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	DOB               string `json:"dob"`
	InsuranceProvider string `json:"insurance_provider"`
}

type PatientName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type BookedAppointment struct {
	ID                uuid.UUID   `json:"id"`
	DoctorID          string      `json:"doctor_id"`
	Patient           PatientName `json:"patient"`
	RequestedDatetime time.Time   `json:"requested_datetime"`
	SlotDate          string      `json:"slot_date"`
	SlotTime          string      `json:"slot_time"`
}

type BookAppointmentResponse struct {
	Status      string            `json:"status"`
	Appointment BookedAppointment `json:"appointment"`
}

type CancelAppointmentResponse struct {
	Status        string    `json:"status"`
	AppointmentID uuid.UUID `json:"appointment_id"`
}

type AppointmentResponse struct {
	Status      string                  `json:"status"`
	Appointment appointment.Appointment `json:"appointment"`
}

type AppointmentListResponse struct {
	Status       string                    `json:"status"`
	Appointments []appointment.Appointment `json:"appointments"`
	Count        int                       `json:"count"`
}

type SlotView struct {
	ID              uuid.UUID `json:"id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type DoctorView struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Department          string     `json:"department"`
	Specialization      string     `json:"specialization"`
	Experience          int        `json:"experience"`
	AvailableSlots      []SlotView `json:"available_slots"`
	AvailableSlotsCount int        `json:"available_slots_count"`
}

type AvailableSlotsResponse struct {
	Status           string       `json:"status"`
	FilterDepartment *string      `json:"filter_department"`
	TotalDoctors     int          `json:"total_doctors"`
	Doctors          []DoctorView `json:"doctors"`
}

type DoctorListResponse struct {
	Status  string       `json:"status"`
	Count   int          `json:"count"`
	Doctors []DoctorView `json:"doctors"`
}

type AuditLogResponse struct {
	Status string                      `json:"status"`
	Count  int                         `json:"count"`
	Logs   []appointment.AuditLogEntry `json:"logs"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toDoctorViews(in []appointment.DoctorAvailability) []DoctorView {
	out := make([]DoctorView, 0, len(in))
	for _, da := range in {
		slots := make([]SlotView, 0, len(da.Slots))
		for _, s := range da.Slots {
			slots = append(slots, SlotView{
				ID:              s.ID,
				Date:            s.Date,
				Time:            s.Time,
				DurationMinutes: s.DurationMinutes,
			})
		}
		out = append(out, DoctorView{
			ID:                  da.Doctor.ID,
			Name:                da.Doctor.Name,
			Department:          da.Doctor.Department,
			Specialization:      da.Doctor.Specialization,
			Experience:          da.Doctor.Experience,
			AvailableSlots:      slots,
			AvailableSlotsCount: len(slots),
		})
	}
	return out
}
