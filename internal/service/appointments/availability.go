package appointments

import (
	"context"
	"errors"
	"time"

	"booking/backend/internal/domain"
	"booking/backend/internal/store"
)

// AvailabilityIndex answers slot occupancy questions against the store at call time.
type AvailabilityIndex struct {
	reader store.AppointmentReader
}

func NewAvailabilityIndex(reader store.AppointmentReader) *AvailabilityIndex {
	return &AvailabilityIndex{reader: reader}
}

// ListOccupiedSlots returns the normalized hours of day that hold at least one
// active appointment for the provider, ascending.
func (a *AvailabilityIndex) ListOccupiedSlots(ctx context.Context, providerID int64, day time.Time) ([]time.Time, error) {
	start, end := domain.DayBounds(day)
	appts, err := a.reader.ListProviderAppointments(ctx, providerID, start, end)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(appts))
	out := make([]time.Time, 0, len(appts))
	for _, appt := range appts {
		if !appt.Active() {
			continue
		}
		slot := domain.NormalizeSlot(appt.ScheduledAt.In(day.Location()))
		key := slot.Unix()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, slot)
	}
	return out, nil
}

// IsSlotFree reports whether no active appointment exists for the exact provider and slot.
func (a *AvailabilityIndex) IsSlotFree(ctx context.Context, providerID int64, slot time.Time) (bool, error) {
	_, err := a.reader.FindActiveAppointment(ctx, providerID, slot)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

type WorkHours struct {
	Start int
	End   int
}

func (w WorkHours) normalized() WorkHours {
	if w.Start < 0 || w.Start > 23 {
		w.Start = 8
	}
	if w.End < w.Start || w.End > 23 {
		w.End = 19
	}
	return w
}

type DaySlot struct {
	Time      string
	Value     time.Time
	Available bool
}

// DaySchedule lists one entry per work hour of day; a slot is available when it
// starts after now and is not occupied.
func (a *AvailabilityIndex) DaySchedule(ctx context.Context, providerID int64, day time.Time, hours WorkHours, now time.Time) ([]DaySlot, error) {
	occupied, err := a.ListOccupiedSlots(ctx, providerID, day)
	if err != nil {
		return nil, err
	}
	taken := make(map[int64]struct{}, len(occupied))
	for _, slot := range occupied {
		taken[slot.Unix()] = struct{}{}
	}

	hours = hours.normalized()
	dayStart, _ := domain.DayBounds(day)
	out := make([]DaySlot, 0, hours.End-hours.Start+1)
	for h := hours.Start; h <= hours.End; h++ {
		value := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), h, 0, 0, 0, dayStart.Location())
		_, busy := taken[value.Unix()]
		out = append(out, DaySlot{
			Time:      value.Format("15:04"),
			Value:     value,
			Available: value.After(now) && !busy,
		})
	}
	return out, nil
}
