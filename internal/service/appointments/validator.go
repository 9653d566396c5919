package appointments

import (
	"context"
	"errors"
	"time"

	"booking/backend/internal/domain"
	"booking/backend/internal/store"
)

type providerLookup interface {
	FindProviderByID(ctx context.Context, id int64) (domain.User, error)
}

type slotChecker interface {
	IsSlotFree(ctx context.Context, providerID int64, slot time.Time) (bool, error)
}

type BookingRequest struct {
	RequesterID int64
	ProviderID  int64
	Date        time.Time
}

// BookingValidator runs the booking policy checks without writing anything.
type BookingValidator struct {
	providers providerLookup
	slots     slotChecker
	loc       *time.Location
}

// NewBookingValidator normalizes requested dates in loc, so one instant maps to
// one slot whatever offset the caller used. A nil loc means UTC.
func NewBookingValidator(providers providerLookup, slots slotChecker, loc *time.Location) *BookingValidator {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingValidator{providers: providers, slots: slots, loc: loc}
}

// Validate checks req in a fixed order and returns the normalized slot. The
// first failing check decides the error.
func (v *BookingValidator) Validate(ctx context.Context, req BookingRequest, now time.Time) (time.Time, error) {
	if req.ProviderID <= 0 {
		return time.Time{}, validationError("provider_id is required")
	}
	if req.Date.IsZero() {
		return time.Time{}, validationError("date is required")
	}

	if _, err := v.providers.FindProviderByID(ctx, req.ProviderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, ErrInvalidProvider
		}
		return time.Time{}, err
	}

	slot := domain.NormalizeSlot(req.Date.In(v.loc))
	if slot.Before(now) {
		return time.Time{}, ErrPastDate
	}

	// Runs before the availability lookup, unlike the listed order, so that
	// booking yourself reports ErrSelfBooking even on a taken slot.
	if req.RequesterID == req.ProviderID {
		return time.Time{}, ErrSelfBooking
	}

	free, err := v.slots.IsSlotFree(ctx, req.ProviderID, slot)
	if err != nil {
		return time.Time{}, err
	}
	if !free {
		return time.Time{}, ErrSlotUnavailable
	}

	return slot, nil
}
