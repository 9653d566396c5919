package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"booking/backend/internal/domain"
	"booking/backend/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// bookingTx implements store.BookingTx on an open transaction.
type bookingTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) FindActiveAppointment(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, error) {
	return findActiveAppointment(ctx, r.db, providerID, slot)
}

func (r *AppointmentRepo) ListProviderAppointments(ctx context.Context, providerID int64, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listProviderAppointments(ctx, r.db, providerID, windowStart, windowEnd)
}

func (r *AppointmentRepo) ListRequesterAppointments(ctx context.Context, requesterID int64, limit, offset int) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Provider").
		Relation("Provider.Avatar").
		Where("?TableAlias.requester_id = ?", requesterID).
		Where("?TableAlias.canceled_at IS NULL").
		OrderExpr("?TableAlias.scheduled_at ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) InProviderTransaction(ctx context.Context, providerID int64, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderCalendar(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (r *AppointmentRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bookingTx{tx: tx})
	})
}

// lockProviderCalendar serializes bookings per provider. The partial unique
// index still decides when two writers race past the lock.
func lockProviderCalendar(ctx context.Context, tx bun.Tx, providerID int64) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "provider:"+strconv.FormatInt(providerID, 10)).Exec(ctx)
	return err
}

func findActiveAppointment(ctx context.Context, db bun.IDB, providerID int64, slot time.Time) (domain.Appointment, error) {
	var appt domain.Appointment
	err := db.NewSelect().
		Model(&appt).
		Where("provider_id = ?", providerID).
		Where("scheduled_at = ?", slot.UTC()).
		Where("canceled_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return appt, nil
}

func listProviderAppointments(ctx context.Context, db bun.IDB, providerID int64, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Relation("Requester").
		Relation("Requester.Avatar").
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.canceled_at IS NULL").
		Where("?TableAlias.scheduled_at >= ?", windowStart.UTC()).
		Where("?TableAlias.scheduled_at < ?", windowEnd.UTC()).
		OrderExpr("?TableAlias.scheduled_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r bookingTx) FindActiveAppointment(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, error) {
	return findActiveAppointment(ctx, r.tx, providerID, slot)
}

func (r bookingTx) ListProviderAppointments(ctx context.Context, providerID int64, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listProviderAppointments(ctx, r.tx, providerID, windowStart, windowEnd)
}

func (r bookingTx) FindAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.tx.NewSelect().
		Model(&appt).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return appt, nil
}

func (r bookingTx) LockAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.tx.NewSelect().
		Model(&appt).
		Relation("Provider").
		Relation("Requester").
		Where("?TableAlias.id = ?", appointmentID).
		For("UPDATE OF ?TableAlias").
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return appt, nil
}

func (r bookingTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:          appt.ID,
		RequesterID: appt.RequesterID,
		ProviderID:  appt.ProviderID,
		ScheduledAt: appt.ScheduledAt.UTC(),
	}

	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return m, nil
}

func (r bookingTx) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, canceledAt time.Time) error {
	at := canceledAt.UTC()
	m := domain.Appointment{ID: appointmentID, CanceledAt: &at}

	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("canceled_at", "updated_at").
		WherePK().
		Where("canceled_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r bookingTx) CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	m := domain.Notification{
		Content:         n.Content,
		RecipientUserID: n.RecipientUserID,
	}
	if _, err := r.tx.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return domain.Notification{}, err
	}
	return m, nil
}
