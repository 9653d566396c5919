package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"booking/backend/internal/service/appointments"
	"booking/backend/internal/service/notifications"
	"booking/backend/internal/service/sessions"
	"booking/backend/internal/service/users"
	"booking/backend/internal/service/validation"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

type errorMapping struct {
	target error
	status int
	code   string
	msg    string
}

var errorMappings = []errorMapping{
	{appointments.ErrInvalidProvider, http.StatusBadRequest, "invalid_provider", "You can only create appointments with providers."},
	{appointments.ErrPastDate, http.StatusBadRequest, "past_date", "Past dates are not permitted."},
	{appointments.ErrSlotUnavailable, http.StatusBadRequest, "slot_unavailable", "Appointment date is not available."},
	{appointments.ErrSelfBooking, http.StatusBadRequest, "self_booking", "You cannot create an appointment with yourself."},
	{appointments.ErrNotFound, http.StatusNotFound, "not_found", "Appointment not found."},
	{appointments.ErrAlreadyCanceled, http.StatusUnauthorized, "already_canceled", "This appointment was already canceled."},
	{appointments.ErrNotOwner, http.StatusUnauthorized, "not_owner", "You don't have permission to cancel this appointment."},
	{appointments.ErrCancellationWindow, http.StatusUnauthorized, "cancellation_window", "You can only cancel appointments 2 hours in advance."},
	{appointments.ErrNotAProvider, http.StatusUnauthorized, "not_a_provider", "User is not a provider."},
	{appointments.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict", "This request key was already used for a different appointment."},
	{users.ErrEmailTaken, http.StatusBadRequest, "email_taken", "User already exists."},
	{users.ErrNotFound, http.StatusNotFound, "user_not_found", "User not found."},
	{users.ErrPasswordMismatch, http.StatusUnauthorized, "password_mismatch", "Password does not match."},
	{sessions.ErrUserNotFound, http.StatusUnauthorized, "user_not_found", "User not found."},
	{sessions.ErrPasswordMismatch, http.StatusUnauthorized, "password_mismatch", "Password does not match."},
	{notifications.ErrNotAProvider, http.StatusUnauthorized, "not_a_provider", "Only providers can load notifications."},
	{notifications.ErrNotFound, http.StatusNotFound, "not_found", "Notification not found."},
}

// classify maps a service error to its HTTP status, code and public message.
// Unknown errors become 500 and are reported as handled=false.
func classify(err error) (status int, code, msg string, handled bool) {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, "validation_error", vErr.Error(), true
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.msg, true
		}
	}
	return http.StatusInternalServerError, "internal_error", "internal error", false
}
