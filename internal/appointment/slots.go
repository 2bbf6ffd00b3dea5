package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SlotAllocator owns slot availability. It never holds state of its own; the
// claim is the store's conditional update.
type SlotAllocator struct {
	slots   SlotStore
	doctors DoctorStore
}

func NewSlotAllocator(slots SlotStore, doctors DoctorStore) *SlotAllocator {
	return &SlotAllocator{slots: slots, doctors: doctors}
}

// FindAndClaim books the available slot at (date, clock). With a doctorID only
// that doctor is considered; otherwise active doctors are tried in ascending
// id order and the first free slot wins.
func (a *SlotAllocator) FindAndClaim(ctx context.Context, doctorID, date, clock string) (*Slot, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID != "" {
		doc, err := a.doctors.GetDoctor(ctx, doctorID)
		if err != nil {
			if errors.Is(err, ErrDoctorNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load doctor: %w", err)
		}
		if !doc.IsActive {
			return nil, ErrSlotUnavailable
		}
		return a.claim(ctx, doc.ID, date, clock)
	}

	doctors, err := a.doctors.ListActiveDoctors(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list active doctors: %w", err)
	}
	for _, doc := range doctors {
		slot, err := a.claim(ctx, doc.ID, date, clock)
		if errors.Is(err, ErrSlotUnavailable) {
			continue
		}
		return slot, err
	}
	return nil, ErrSlotUnavailable
}

func (a *SlotAllocator) claim(ctx context.Context, doctorID, date, clock string) (*Slot, error) {
	slot, err := a.slots.ClaimSlot(ctx, doctorID, date, clock)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("claim slot: %w", err)
	}
	return slot, nil
}

// Release returns a slot to available. Releasing a free slot is a no-op.
func (a *SlotAllocator) Release(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := a.slots.ReleaseSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("release slot: %w", err)
	}
	return slot, nil
}

func (a *SlotAllocator) Get(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := a.slots.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	return slot, nil
}

// ListAvailable returns active doctors that have at least one available slot.
// An empty department lists every department.
func (a *SlotAllocator) ListAvailable(ctx context.Context, department string) ([]DoctorAvailability, error) {
	all, err := a.availability(ctx, strings.TrimSpace(department))
	if err != nil {
		return nil, err
	}
	out := make([]DoctorAvailability, 0, len(all))
	for _, da := range all {
		if len(da.Slots) > 0 {
			out = append(out, da)
		}
	}
	return out, nil
}

// ListDoctors returns every active doctor with its available slots, possibly none.
func (a *SlotAllocator) ListDoctors(ctx context.Context) ([]DoctorAvailability, error) {
	return a.availability(ctx, "")
}

func (a *SlotAllocator) availability(ctx context.Context, department string) ([]DoctorAvailability, error) {
	doctors, err := a.doctors.ListActiveDoctors(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("list active doctors: %w", err)
	}
	if len(doctors) == 0 {
		return []DoctorAvailability{}, nil
	}

	ids := make([]string, len(doctors))
	for i, d := range doctors {
		ids[i] = d.ID
	}
	slots, err := a.slots.ListAvailableSlots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}

	byDoctor := make(map[string][]Slot, len(doctors))
	for _, s := range slots {
		byDoctor[s.DoctorID] = append(byDoctor[s.DoctorID], s)
	}

	out := make([]DoctorAvailability, 0, len(doctors))
	for _, d := range doctors {
		slots := byDoctor[d.ID]
		if slots == nil {
			slots = []Slot{}
		}
		out = append(out, DoctorAvailability{Doctor: d, Slots: slots})
	}
	return out, nil
}
