package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"booking/backend/internal/domain"
	"booking/backend/internal/queue"
	"booking/backend/internal/service/appointments"
)

var errNoRecipient = errors.New("cancellation mail has no provider email")

// CancellationHandler turns cancellation_mail jobs into an email to the provider.
type CancellationHandler struct {
	sender Sender
	locale appointments.Locale
	loc    *time.Location
	log    *slog.Logger
}

func NewCancellationHandler(sender Sender, locale appointments.Locale, loc *time.Location, log *slog.Logger) *CancellationHandler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &CancellationHandler{
		sender: sender,
		locale: locale,
		loc:    loc,
		log:    log.With(slog.String("component", "mail.cancellation")),
	}
}

func (h *CancellationHandler) Handle(ctx context.Context, job queue.Job) error {
	var m domain.CancellationMail
	if err := job.Decode(&m); err != nil {
		return err
	}
	to := strings.TrimSpace(m.ProviderEmail)
	if to == "" {
		return errNoRecipient
	}

	subject, body := h.render(m)
	if err := h.sender.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send cancellation mail for %s: %w", m.AppointmentID, err)
	}
	h.log.Info("cancellation mail sent",
		slog.String("appointment_id", m.AppointmentID),
		slog.Int64("provider_id", m.ProviderID),
	)
	return nil
}

func (h *CancellationHandler) render(m domain.CancellationMail) (string, string) {
	when := h.locale.FormatSlot(m.ScheduledAt.In(h.loc))
	switch h.locale {
	case appointments.LocaleEN:
		return "Appointment canceled", fmt.Sprintf(
			"Hello %s,\r\n\r\nYour appointment with %s on %s was canceled.\r\n",
			m.ProviderName, m.RequesterName, when,
		)
	default:
		return "Agendamento cancelado", fmt.Sprintf(
			"Olá %s,\r\n\r\nO agendamento de %s para o %s foi cancelado.\r\n",
			m.ProviderName, m.RequesterName, when,
		)
	}
}
