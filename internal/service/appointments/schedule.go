package appointments

import (
	"context"
	"errors"
	"time"

	"booking/backend/internal/domain"
	"booking/backend/internal/store"
)

// RequesterAppointment carries the flags derived at read time.
type RequesterAppointment struct {
	domain.Appointment
	Past       bool
	Cancelable bool
}

func (s *Service) ListForRequester(ctx context.Context, requesterID int64, page int) ([]RequesterAppointment, error) {
	if requesterID <= 0 {
		return nil, validationError("user_id is required")
	}
	if page < 1 {
		page = 1
	}

	rows, err := s.repo.ListRequesterAppointments(ctx, requesterID, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]RequesterAppointment, 0, len(rows))
	for _, a := range rows {
		out = append(out, RequesterAppointment{
			Appointment: a,
			Past:        a.Past(now),
			Cancelable:  a.Cancelable(now),
		})
	}
	return out, nil
}

// ProviderSchedule lists the provider's active appointments on the calendar day
// containing day, ordered by slot.
func (s *Service) ProviderSchedule(ctx context.Context, providerID int64, day time.Time) ([]domain.Appointment, error) {
	if day.IsZero() {
		return nil, validationError("date is required")
	}
	if _, err := s.users.FindProviderByID(ctx, providerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotAProvider
		}
		return nil, err
	}

	start, end := domain.DayBounds(day)
	return s.repo.ListProviderAppointments(ctx, providerID, start, end)
}

// ProviderAvailability lists the configured work hours of day with their availability.
func (s *Service) ProviderAvailability(ctx context.Context, providerID int64, day time.Time) ([]DaySlot, error) {
	if day.IsZero() {
		return nil, validationError("date is required")
	}
	if _, err := s.users.FindProviderByID(ctx, providerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidProvider
		}
		return nil, err
	}

	return NewAvailabilityIndex(s.repo).DaySchedule(ctx, providerID, day, s.workHours, s.now())
}

// Location is the zone used to interpret calendar days.
func (s *Service) Location() *time.Location {
	return s.loc
}
