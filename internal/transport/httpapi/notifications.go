package httpapi

import (
	"log/slog"
	"net/http"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "ListNotifications"))
	userID, _ := userIDFrom(r.Context())

	rows, err := s.notifications.List(r.Context(), userID)
	if err != nil {
		s.fail(w, log, err, slog.Int64("user_id", userID))
		return
	}
	out := make([]notificationView, 0, len(rows))
	for _, n := range rows {
		out = append(out, toNotificationView(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "MarkNotificationRead"))
	userID, _ := userIDFrom(r.Context())

	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	n, err := s.notifications.MarkRead(r.Context(), id, userID)
	if err != nil {
		s.fail(w, log, err, slog.Int64("user_id", userID), slog.Int64("notification_id", id))
		return
	}
	writeJSON(w, http.StatusOK, toNotificationView(n))
}
