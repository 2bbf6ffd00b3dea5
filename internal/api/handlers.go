package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

type handlers struct {
	svc *appointment.Service
	log zerolog.Logger
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	booking, err := h.svc.Book(r.Context(), appointment.BookingRequest{
		DoctorID:          req.DoctorID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		DOB:               req.DOB,
		InsuranceProvider: req.InsuranceProvider,
		Reason:            req.Reason,
		RequestedDatetime: req.RequestedDatetime,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookAppointmentResponse{
		Status: "booked",
		Appointment: BookedAppointment{
			ID:       booking.Appointment.ID,
			DoctorID: booking.Appointment.DoctorID,
			Patient: PatientName{
				FirstName: booking.Patient.FirstName,
				LastName:  booking.Patient.LastName,
			},
			RequestedDatetime: booking.Appointment.RequestedDatetime,
			SlotDate:          booking.Slot.Date,
			SlotTime:          booking.Slot.Time,
		},
	})
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req CancelAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	res, err := h.svc.Cancel(r.Context(), req.AppointmentID, req.Reason)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, CancelAppointmentResponse{
		Status:        res.Status,
		AppointmentID: res.AppointmentID,
	})
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AppointmentResponse{Status: "success", Appointment: *appt})
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.svc.ListBooked(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AppointmentListResponse{
		Status:       "success",
		Appointments: appts,
		Count:        len(appts),
	})
}

func (h *handlers) availableSlots(w http.ResponseWriter, r *http.Request) {
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	var filter *string
	if department != "" {
		filter = &department
	}

	doctors, err := h.svc.ListAvailableSlots(r.Context(), department)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	views := toDoctorViews(doctors)
	writeJSON(w, http.StatusOK, AvailableSlotsResponse{
		Status:           "success",
		FilterDepartment: filter,
		TotalDoctors:     len(views),
		Doctors:          views,
	})
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.svc.ListDoctors(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	views := toDoctorViews(doctors)
	writeJSON(w, http.StatusOK, DoctorListResponse{
		Status:  "success",
		Count:   len(views),
		Doctors: views,
	})
}

func (h *handlers) createPatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	p, err := h.svc.RegisterPatient(r.Context(), appointment.PatientRequest{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		DOB:               req.DOB,
		InsuranceProvider: req.InsuranceProvider,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handlers) auditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.ListAuditLogs(r.Context(), r.URL.Query().Get("action"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditLogResponse{
		Status: "success",
		Count:  len(logs),
		Logs:   logs,
	})
}
