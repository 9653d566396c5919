package users

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"booking/backend/internal/auth"
	"booking/backend/internal/domain"
	"booking/backend/internal/service/validation"
	"booking/backend/internal/store"
)

const minPasswordLen = 8

var (
	ErrEmailTaken       = errors.New("email already registered")
	ErrNotFound         = errors.New("user not found")
	ErrPasswordMismatch = errors.New("password does not match")
)

type Service struct {
	users store.UserRepository
	log   *slog.Logger
}

func NewService(users store.UserRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, log: log.With(slog.String("component", "service.users"))}
}

type CreateInput struct {
	Name     string
	Email    string
	Password string
	Provider bool
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.User{}, validation.New("name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if len(in.Password) < minPasswordLen {
		return domain.User{}, validation.New("password must have at least 8 characters")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.users.Create(ctx, domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Provider:     in.Provider,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	s.log.Info("user created", slog.Int64("user_id", u.ID), slog.Bool("provider", u.Provider))
	return u, nil
}

// UpdateInput carries optional changes. Password changes require the current
// password and a matching confirmation.
type UpdateInput struct {
	UserID          int64
	Name            *string
	Email           *string
	AvatarID        *int64
	OldPassword     string
	Password        string
	ConfirmPassword string
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (domain.User, error) {
	if in.UserID <= 0 {
		return domain.User{}, validation.New("user_id is required")
	}

	u, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.User{}, validation.New("name must not be empty")
		}
		u.Name = name
	}

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return domain.User{}, err
		}
		if email != u.Email {
			if _, err := s.users.FindByEmail(ctx, email); err == nil {
				return domain.User{}, ErrEmailTaken
			} else if !errors.Is(err, store.ErrNotFound) {
				return domain.User{}, err
			}
			u.Email = email
		}
	}

	if in.AvatarID != nil {
		u.AvatarID = in.AvatarID
	}

	switch {
	case in.OldPassword != "":
		if len(in.Password) < minPasswordLen {
			return domain.User{}, validation.New("password must have at least 8 characters")
		}
		if in.ConfirmPassword != in.Password {
			return domain.User{}, validation.New("confirm_password must match password")
		}
		if err := auth.CheckPassword(u.PasswordHash, in.OldPassword); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return domain.User{}, ErrPasswordMismatch
			}
			return domain.User{}, err
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return domain.User{}, err
		}
		u.PasswordHash = hash
	case in.Password != "":
		return domain.User{}, validation.New("old_password is required to change password")
	}

	updated, err := s.users.Update(ctx, u)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			return domain.User{}, ErrEmailTaken
		case errors.Is(err, store.ErrNotFound):
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	updated.Avatar = u.Avatar
	return updated, nil
}

func (s *Service) ListProviders(ctx context.Context) ([]domain.User, error) {
	return s.users.ListProviders(ctx)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", validation.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validation.New("email is invalid")
	}
	return email, nil
}
