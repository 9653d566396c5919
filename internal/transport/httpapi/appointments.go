package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"booking/backend/internal/service/appointments"
)

type createAppointmentRequest struct {
	ProviderID int64  `json:"provider_id"`
	Date       string `json:"date"`
}

func (s *Server) createAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "CreateAppointment"))
	userID, _ := userIDFrom(r.Context())
	loc := s.appointments.Location()

	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	date, err := parseDate(req.Date, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	appt, err := s.appointments.Create(r.Context(), appointments.CreateInput{
		RequesterID:    userID,
		ProviderID:     req.ProviderID,
		Date:           date,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.fail(w, log, err, slog.Int64("requester_id", userID), slog.Int64("provider_id", req.ProviderID))
		return
	}

	log.Info("appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.Int64("requester_id", appt.RequesterID),
		slog.Int64("provider_id", appt.ProviderID),
		slog.Time("scheduled_at", appt.ScheduledAt),
	)
	// An idempotent replay of a since-canceled booking is not a new resource.
	status := http.StatusCreated
	if appt.CanceledAt != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, toCreatedAppointmentView(appt, loc))
}

func (s *Server) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "CancelAppointment"))
	userID, _ := userIDFrom(r.Context())

	id, err := uuid.Parse(r.URL.Query().Get(":id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "appointment id must be a UUID")
		return
	}

	appt, err := s.appointments.Cancel(r.Context(), id, userID)
	if err != nil {
		s.fail(w, log, err, slog.String("appointment_id", id.String()), slog.Int64("requester_id", userID))
		return
	}

	log.Info("appointment canceled", slog.String("appointment_id", appt.ID.String()), slog.Int64("requester_id", userID))
	writeJSON(w, http.StatusOK, s.toAppointmentView(appt, s.appointments.Location()))
}

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "ListAppointments"))
	userID, _ := userIDFrom(r.Context())

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "page must be an integer")
			return
		}
		page = p
	}

	rows, err := s.appointments.ListForRequester(r.Context(), userID, page)
	if err != nil {
		s.fail(w, log, err, slog.Int64("requester_id", userID))
		return
	}

	loc := s.appointments.Location()
	out := make([]appointmentView, 0, len(rows))
	for _, a := range rows {
		out = append(out, s.toRequesterAppointmentView(a, loc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) providerSchedule(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "ProviderSchedule"))
	userID, _ := userIDFrom(r.Context())
	loc := s.appointments.Location()

	day, err := parseDate(r.URL.Query().Get("date"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	rows, err := s.appointments.ProviderSchedule(r.Context(), userID, day)
	if err != nil {
		s.fail(w, log, err, slog.Int64("provider_id", userID))
		return
	}

	out := make([]appointmentView, 0, len(rows))
	for _, a := range rows {
		out = append(out, s.toAppointmentView(a, loc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) providerAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "ProviderAvailability"))

	providerID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	day, err := parseDate(r.URL.Query().Get("date"), s.appointments.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	slots, err := s.appointments.ProviderAvailability(r.Context(), providerID, day)
	if err != nil {
		s.fail(w, log, err, slog.Int64("provider_id", providerID))
		return
	}

	out := make([]slotView, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotView{Time: sl.Time, Value: sl.Value, Available: sl.Available})
	}
	writeJSON(w, http.StatusOK, out)
}

// fail writes the mapped error response. Expected domain errors log at info,
// anything else at error with the cause.
func (s *Server) fail(w http.ResponseWriter, log *slog.Logger, err error, attrs ...any) {
	status, code, msg, handled := classify(err)
	if handled {
		log.Info("request rejected", append([]any{slog.String("code", code)}, attrs...)...)
	} else {
		log.Error("request failed", append([]any{slog.Any("err", err)}, attrs...)...)
	}
	writeError(w, status, code, msg)
}
