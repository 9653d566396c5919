package store

import (
	"context"
	"time"

	"booking/backend/internal/domain"
)

// AppointmentReader is the read side shared by the repository and open transactions.
type AppointmentReader interface {
	FindActiveAppointment(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, error)
	ListProviderAppointments(ctx context.Context, providerID int64, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
}

type AppointmentRepository interface {
	AppointmentReader

	ListRequesterAppointments(ctx context.Context, requesterID int64, limit, offset int) ([]domain.Appointment, error)

	// InProviderTransaction runs fn in a transaction holding the provider's calendar lock.
	InProviderTransaction(ctx context.Context, providerID int64, fn func(ctx context.Context, tx BookingTx) error) error
	// InTransaction runs fn in a plain transaction.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
}
