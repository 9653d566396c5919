package httpapi

import (
	"log/slog"
	"net/http"

	"booking/backend/internal/service/users"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider bool   `json:"provider"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "CreateUser"))

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	u, err := s.users.Create(r.Context(), users.CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Provider: req.Provider,
	})
	if err != nil {
		s.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toUserView(&u))
}

type updateUserRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	AvatarID        *int64  `json:"avatar_id"`
	OldPassword     string  `json:"old_password"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirm_password"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "UpdateUser"))
	userID, _ := userIDFrom(r.Context())

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	u, err := s.users.Update(r.Context(), users.UpdateInput{
		UserID:          userID,
		Name:            req.Name,
		Email:           req.Email,
		AvatarID:        req.AvatarID,
		OldPassword:     req.OldPassword,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		s.fail(w, log, err, slog.Int64("user_id", userID))
		return
	}
	writeJSON(w, http.StatusOK, s.toUserView(&u))
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "ListProviders"))

	rows, err := s.users.ListProviders(r.Context())
	if err != nil {
		s.fail(w, log, err)
		return
	}
	out := make([]*userView, 0, len(rows))
	for i := range rows {
		out = append(out, s.toUserView(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type createSessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionView struct {
	User  *userView `json:"user"`
	Token string    `json:"token"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "CreateSession"))

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{User: s.toUserView(&sess.User), Token: sess.Token})
}
