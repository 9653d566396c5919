package appointments

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"booking/backend/internal/domain"
	"booking/backend/internal/obs"
	"booking/backend/internal/store"
)

type userLookup interface {
	FindByID(ctx context.Context, id int64) (domain.User, error)
	FindProviderByID(ctx context.Context, id int64) (domain.User, error)
}

// JobQueue accepts deferred work. Delivery and retries belong to the queue.
type JobQueue interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

type Options struct {
	Locale         Locale
	Location       *time.Location
	WorkHours      WorkHours
	PageSize       int
	EnqueueTimeout time.Duration
	Now            func() time.Time
}

type Service struct {
	repo  store.AppointmentRepository
	users userLookup
	queue JobQueue
	log   *slog.Logger

	locale         Locale
	loc            *time.Location
	workHours      WorkHours
	pageSize       int
	enqueueTimeout time.Duration
	now            func() time.Time
}

func NewService(repo store.AppointmentRepository, users userLookup, queue JobQueue, log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.Locale == "" {
		opts.Locale = LocalePT
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.WorkHours == (WorkHours{}) {
		opts.WorkHours = WorkHours{Start: 8, End: 19}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:           repo,
		users:          users,
		queue:          queue,
		log:            log.With(slog.String("component", "service.appointments")),
		locale:         opts.Locale,
		loc:            opts.Location,
		workHours:      opts.WorkHours,
		pageSize:       opts.PageSize,
		enqueueTimeout: opts.EnqueueTimeout,
		now:            opts.Now,
	}
}

type CreateInput struct {
	RequesterID    int64
	ProviderID     int64
	Date           time.Time
	IdempotencyKey string
}

// Create validates and books a slot. The appointment and the provider's
// notification are written in the same transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	if in.RequesterID <= 0 {
		return domain.Appointment{}, validationError("requester_id is required")
	}

	var id uuid.UUID
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("booking:create_appointment:"+strconv.FormatInt(in.RequesterID, 10)+":"+key))
	}

	now := s.now()
	var out domain.Appointment
	err := s.repo.InProviderTransaction(ctx, in.ProviderID, func(ctx context.Context, tx store.BookingTx) error {
		if id != uuid.Nil {
			existing, err := tx.FindAppointment(ctx, id)
			switch {
			case err == nil:
				if existing.RequesterID != in.RequesterID ||
					existing.ProviderID != in.ProviderID ||
					!existing.ScheduledAt.Equal(domain.NormalizeSlot(in.Date.In(s.loc))) {
					return ErrIdempotencyConflict
				}
				// A replay returns the stored appointment as it is now, which
				// may already be canceled; callers see it through CanceledAt.
				out = existing
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		validator := NewBookingValidator(s.users, NewAvailabilityIndex(tx), s.loc)
		slot, err := validator.Validate(ctx, BookingRequest{
			RequesterID: in.RequesterID,
			ProviderID:  in.ProviderID,
			Date:        in.Date,
		}, now)
		if err != nil {
			return err
		}

		requester, err := s.users.FindByID(ctx, in.RequesterID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return validationError("requester not found")
			}
			return err
		}

		appt, err := tx.CreateAppointment(ctx, domain.Appointment{
			ID:          id,
			RequesterID: in.RequesterID,
			ProviderID:  in.ProviderID,
			ScheduledAt: slot.UTC(),
		})
		if err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				return ErrSlotUnavailable
			case errors.Is(err, store.ErrIdempotencyConflict):
				return ErrIdempotencyConflict
			}
			return err
		}

		_, err = tx.CreateNotification(ctx, domain.Notification{
			Content:         s.locale.NewAppointmentMessage(requester.Name, slot.In(s.loc)),
			RecipientUserID: in.ProviderID,
		})
		if err != nil {
			return err
		}

		out = appt
		return nil
	})
	if err != nil {
		obs.BookingRejections.WithLabelValues(rejectionReason(err)).Inc()
		return domain.Appointment{}, err
	}

	obs.AppointmentsCreated.Inc()
	return out, nil
}

// Cancel moves an active appointment owned by requesterID to canceled and then
// enqueues the cancellation mail. A failed enqueue does not undo the cancellation.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID, requesterID int64) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}

	now := s.now()
	var out domain.Appointment
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		appt, err := tx.LockAppointment(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !appt.Active() {
			return ErrAlreadyCanceled
		}
		if appt.RequesterID != requesterID {
			return ErrNotOwner
		}
		if !appt.Cancelable(now) {
			return ErrCancellationWindow
		}

		canceledAt := now.UTC()
		if err := tx.CancelAppointment(ctx, appt.ID, canceledAt); err != nil {
			return err
		}
		appt.CanceledAt = &canceledAt
		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	obs.AppointmentsCanceled.Inc()
	s.enqueueCancellationMail(ctx, out)
	return out, nil
}

func (s *Service) enqueueCancellationMail(ctx context.Context, appt domain.Appointment) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.enqueueTimeout)
	defer cancel()

	if err := s.queue.Enqueue(ctx, domain.JobKindCancellationMail, cancellationMail(appt)); err != nil {
		obs.JobEnqueueFailures.WithLabelValues(domain.JobKindCancellationMail).Inc()
		s.log.Error(
			"cancellation mail enqueue failed",
			slog.Any("err", err),
			slog.String("appointment_id", appt.ID.String()),
		)
		return
	}
	s.log.Debug("cancellation mail enqueued", slog.String("appointment_id", appt.ID.String()))
}

func cancellationMail(appt domain.Appointment) domain.CancellationMail {
	job := domain.CancellationMail{
		AppointmentID: appt.ID.String(),
		ScheduledAt:   appt.ScheduledAt,
		ProviderID:    appt.ProviderID,
		RequesterID:   appt.RequesterID,
	}
	if appt.CanceledAt != nil {
		job.CanceledAt = *appt.CanceledAt
	}
	if appt.Provider != nil {
		job.ProviderName = appt.Provider.Name
		job.ProviderEmail = appt.Provider.Email
	}
	if appt.Requester != nil {
		job.RequesterName = appt.Requester.Name
		job.RequesterEmail = appt.Requester.Email
	}
	return job
}

func rejectionReason(err error) string {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, ErrInvalidProvider):
		return "invalid_provider"
	case errors.Is(err, ErrPastDate):
		return "past_date"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrSelfBooking):
		return "self_booking"
	case errors.Is(err, ErrIdempotencyConflict):
		return "idempotency_conflict"
	default:
		return "error"
	}
}
