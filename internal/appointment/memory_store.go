package appointment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Every method takes one mutex, so each
// conditional update is atomic the same way the Postgres statements are.
type MemoryStore struct {
	mu sync.Mutex

	doctors      map[string]Doctor
	slots        map[uuid.UUID]*Slot
	slotIndex    map[string]uuid.UUID
	patients     map[uuid.UUID]*Patient
	patientIndex map[string]uuid.UUID
	appointments map[uuid.UUID]*Appointment
	liveBySlot   map[uuid.UUID]uuid.UUID
	audit        []AuditLogEntry
	seq          int64

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:      make(map[string]Doctor),
		slots:        make(map[uuid.UUID]*Slot),
		slotIndex:    make(map[string]uuid.UUID),
		patients:     make(map[uuid.UUID]*Patient),
		patientIndex: make(map[string]uuid.UUID),
		appointments: make(map[uuid.UUID]*Appointment),
		liveBySlot:   make(map[uuid.UUID]uuid.UUID),
		now:          time.Now,
	}
}

func slotKey(doctorID, date, clock string) string {
	return doctorID + "|" + date + "|" + clock
}

func patientKey(first, last, dob string) string {
	return strings.ToLower(first) + "|" + strings.ToLower(last) + "|" + dob
}

// AddDoctor inserts or replaces a doctor.
func (m *MemoryStore) AddDoctor(d Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = d
}

// AddSlot creates an available slot. Duplicate (doctor, date, time) is rejected.
func (m *MemoryStore) AddSlot(doctorID, date, clock string, durationMinutes int) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.doctors[doctorID]; !ok {
		return nil, ErrDoctorNotFound
	}
	key := slotKey(doctorID, date, clock)
	if _, ok := m.slotIndex[key]; ok {
		return nil, fmt.Errorf("slot %s %s for %s already exists", date, clock, doctorID)
	}

	now := m.now()
	s := &Slot{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		Date:            date,
		Time:            clock,
		DurationMinutes: durationMinutes,
		Status:          SlotAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.slots[s.ID] = s
	m.slotIndex[key] = s.ID
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) GetDoctor(_ context.Context, id string) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryStore) ListActiveDoctors(_ context.Context, department string) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Doctor{}
	for _, d := range m.doctors {
		if !d.IsActive {
			continue
		}
		if department != "" && !strings.EqualFold(d.Department, department) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ResolvePatient(_ context.Context, p Patient) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := patientKey(p.FirstName, p.LastName, p.DOB)
	now := m.now()
	if id, ok := m.patientIndex[key]; ok {
		existing := m.patients[id]
		if p.InsuranceProvider != "" {
			existing.InsuranceProvider = p.InsuranceProvider
		}
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}

	created := &Patient{
		ID:                uuid.New(),
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		DOB:               p.DOB,
		InsuranceProvider: p.InsuranceProvider,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.patients[created.ID] = created
	m.patientIndex[key] = created.ID
	cp := *created
	return &cp, nil
}

func (m *MemoryStore) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ClaimSlot(_ context.Context, doctorID, date, clock string) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.slotIndex[slotKey(doctorID, date, clock)]
	if !ok {
		return nil, ErrSlotUnavailable
	}
	s := m.slots[id]
	if s.Status != SlotAvailable {
		return nil, ErrSlotUnavailable
	}
	s.Status = SlotBooked
	s.UpdatedAt = m.now()
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ReleaseSlot(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.Status = SlotAvailable
	s.UpdatedAt = m.now()
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) GetSlot(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListAvailableSlots(_ context.Context, doctorIDs []string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]struct{}, len(doctorIDs))
	for _, id := range doctorIDs {
		want[id] = struct{}{}
	}

	out := []Slot{}
	for _, s := range m.slots {
		if s.Status != SlotAvailable {
			continue
		}
		if _, ok := want[s.DoctorID]; !ok {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].DoctorID < out[j].DoctorID
	})
	return out, nil
}

func (m *MemoryStore) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patients[a.PatientID]; !ok {
		return nil, ErrPatientNotFound
	}
	if _, ok := m.doctors[a.DoctorID]; !ok {
		return nil, ErrDoctorNotFound
	}
	if a.SlotID != nil {
		if _, ok := m.slots[*a.SlotID]; !ok {
			return nil, ErrSlotNotFound
		}
		if _, taken := m.liveBySlot[*a.SlotID]; taken {
			return nil, fmt.Errorf("slot already has a live appointment: %w", ErrSlotUnavailable)
		}
	}
	if _, exists := m.appointments[a.ID]; exists {
		return nil, fmt.Errorf("appointment %s already exists", a.ID)
	}

	now := m.now()
	stored := a
	stored.Status = StatusBooked
	stored.CancelledAt = nil
	stored.CancellationReason = nil
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if a.SlotID != nil {
		slotID := *a.SlotID
		stored.SlotID = &slotID
		m.liveBySlot[slotID] = a.ID
	}
	m.appointments[a.ID] = &stored
	return copyAppointment(&stored), nil
}

func (m *MemoryStore) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return copyAppointment(a), nil
}

func (m *MemoryStore) TransitionAppointment(_ context.Context, id uuid.UUID, from, to AppointmentStatus, reason string) (*Appointment, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidStatusTransition)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	now := m.now()
	a.Status = to
	a.UpdatedAt = now
	if to == StatusCancelled {
		a.CancelledAt = &now
		if reason != "" {
			r := reason
			a.CancellationReason = &r
		}
	}
	if to == StatusCancelled && a.SlotID != nil && m.liveBySlot[*a.SlotID] == a.ID {
		delete(m.liveBySlot, *a.SlotID)
	}
	return copyAppointment(a), nil
}

func (m *MemoryStore) ListAppointmentsByStatus(_ context.Context, status AppointmentStatus) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Appointment{}
	for _, a := range m.appointments {
		if a.Status == status {
			out = append(out, *copyAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedDatetime.Equal(out[j].RequestedDatetime) {
			return out[i].RequestedDatetime.Before(out[j].RequestedDatetime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *MemoryStore) InsertAuditEntry(_ context.Context, e AuditLogEntry) (*AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	stored := copyAuditEntry(e)
	stored.Seq = m.seq
	stored.CreatedAt = m.now()
	m.audit = append(m.audit, stored)
	return &stored, nil
}

func (m *MemoryStore) ListAuditEntries(_ context.Context, action AuditAction) ([]AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []AuditLogEntry{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		if action == "" || m.audit[i].Action == action {
			out = append(out, copyAuditEntry(m.audit[i]))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListAuditEntriesAfter(_ context.Context, afterSeq int64, limit int) ([]AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []AuditLogEntry{}
	for _, e := range m.audit {
		if len(out) >= limit {
			break
		}
		if e.Seq > afterSeq {
			out = append(out, copyAuditEntry(e))
		}
	}
	return out, nil
}

func copyAppointment(a *Appointment) *Appointment {
	cp := *a
	if a.SlotID != nil {
		id := *a.SlotID
		cp.SlotID = &id
	}
	if a.CancelledAt != nil {
		t := *a.CancelledAt
		cp.CancelledAt = &t
	}
	if a.CancellationReason != nil {
		r := *a.CancellationReason
		cp.CancellationReason = &r
	}
	return &cp
}

func copyAuditEntry(e AuditLogEntry) AuditLogEntry {
	if e.AppointmentID != nil {
		id := *e.AppointmentID
		e.AppointmentID = &id
	}
	if e.PatientID != nil {
		id := *e.PatientID
		e.PatientID = &id
	}
	if e.DoctorID != nil {
		d := *e.DoctorID
		e.DoctorID = &d
	}
	if e.ErrorMessage != nil {
		msg := *e.ErrorMessage
		e.ErrorMessage = &msg
	}
	return e
}
