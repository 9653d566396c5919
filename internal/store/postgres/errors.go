package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"booking/backend/internal/store"
)

const (
	uniqueViolation = "23505"

	constraintActiveSlot      = "appointments_active_slot_key"
	constraintAppointmentPkey = "appointments_pkey"
	constraintUserEmail       = "users_email_key"
)

// mapError translates driver errors into store sentinels. Unknown errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintActiveSlot:
		return store.ErrConflict
	case constraintAppointmentPkey:
		return store.ErrIdempotencyConflict
	case constraintUserEmail:
		return store.ErrEmailTaken
	}
	return err
}
