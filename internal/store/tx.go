package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"booking/backend/internal/domain"
)

type BookingTx interface {
	AppointmentReader

	FindAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	// LockAppointment loads the appointment with provider and requester joined, locking the row.
	LockAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID, canceledAt time.Time) error

	CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
}
