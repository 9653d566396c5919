package appointments

import (
	"errors"

	"booking/backend/internal/service/validation"
)

type ValidationError = validation.Error

func validationError(msg string) error {
	return validation.New(msg)
}

var (
	ErrInvalidProvider     = errors.New("invalid provider")
	ErrPastDate            = errors.New("appointment date is in the past")
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrSelfBooking         = errors.New("cannot book an appointment with yourself")
	ErrNotFound            = errors.New("appointment not found")
	ErrAlreadyCanceled     = errors.New("appointment already canceled")
	ErrNotOwner            = errors.New("appointment belongs to another user")
	ErrCancellationWindow  = errors.New("appointments can only be canceled at least 2 hours in advance")
	ErrNotAProvider        = errors.New("user is not a provider")
	ErrIdempotencyConflict = errors.New("idempotency key already used for a different appointment")
)
