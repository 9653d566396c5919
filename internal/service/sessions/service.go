package sessions

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"booking/backend/internal/auth"
	"booking/backend/internal/domain"
	"booking/backend/internal/service/validation"
	"booking/backend/internal/store"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPasswordMismatch = errors.New("password does not match")
)

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
}

type tokenIssuer interface {
	Issue(userID int64) (string, error)
}

type Service struct {
	users  userFinder
	tokens tokenIssuer
	log    *slog.Logger
}

func NewService(users userFinder, tokens tokenIssuer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, tokens: tokens, log: log.With(slog.String("component", "service.sessions"))}
}

type Session struct {
	User  domain.User
	Token string
}

func (s *Service) Create(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, validation.New("email and password are required")
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, err
	}

	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.log.Warn("password mismatch", slog.Int64("user_id", u.ID))
			return Session{}, ErrPasswordMismatch
		}
		return Session{}, err
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}
