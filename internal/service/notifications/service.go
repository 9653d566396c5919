package notifications

import (
	"context"
	"errors"

	"booking/backend/internal/domain"
	"booking/backend/internal/service/validation"
	"booking/backend/internal/store"
)

const inboxLimit = 20

var (
	ErrNotAProvider = errors.New("only providers can load notifications")
	ErrNotFound     = errors.New("notification not found")
)

type providerLookup interface {
	FindProviderByID(ctx context.Context, id int64) (domain.User, error)
}

type Service struct {
	repo      store.NotificationRepository
	providers providerLookup
}

func NewService(repo store.NotificationRepository, providers providerLookup) *Service {
	return &Service{repo: repo, providers: providers}
}

// List returns the newest notifications addressed to a provider.
func (s *Service) List(ctx context.Context, userID int64) ([]domain.Notification, error) {
	if _, err := s.providers.FindProviderByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotAProvider
		}
		return nil, err
	}
	return s.repo.ListForRecipient(ctx, userID, inboxLimit)
}

// MarkRead flags a notification as read. Only its recipient may do so.
func (s *Service) MarkRead(ctx context.Context, notificationID, userID int64) (domain.Notification, error) {
	if notificationID <= 0 {
		return domain.Notification{}, validation.New("notification id is required")
	}
	n, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Notification{}, ErrNotFound
		}
		return domain.Notification{}, err
	}
	return n, nil
}
