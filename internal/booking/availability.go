package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ListAvailableSlots resolves the bookable slots for a provider on a date:
// the provider's window for that weekday, cut into fixed-duration slots,
// minus the starts of active appointments. A provider with no window (or an
// unavailable one) simply has nothing bookable; that is not an error.
// Cancelled appointments drop out of the booked set, so freed slots
// reappear on the next call.
func (s *Service) ListAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Slot, error) {
	date = DateOnly(date)

	window, ok, err := s.windowFor(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Slot{}, nil
	}

	active, err := s.repo.ListActiveAppointments(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}
	booked := make(map[TimeOfDay]bool, len(active))
	for _, a := range active {
		booked[a.Start] = true
	}

	slots := []Slot{}
	for slot := range window.Slots(s.cfg.SlotDuration) {
		if !booked[slot.Start] {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

// windowFor finds the provider's available window for the date's weekday.
func (s *Service) windowFor(ctx context.Context, providerID uuid.UUID, date time.Time) (AvailabilityWindow, bool, error) {
	windows, err := s.repo.GetAvailability(ctx, providerID)
	if err != nil {
		return AvailabilityWindow{}, false, fmt.Errorf("load availability: %w", err)
	}
	weekday := date.Weekday()
	for _, w := range windows {
		if w.Weekday == weekday && w.IsAvailable {
			return w, true, nil
		}
	}
	return AvailabilityWindow{}, false, nil
}
