package store

import (
	"context"

	"booking/backend/internal/domain"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (domain.User, error)
	// FindProviderByID returns ErrNotFound unless the user exists and is flagged as a provider.
	FindProviderByID(ctx context.Context, id int64) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	ListProviders(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
	Update(ctx context.Context, u domain.User) (domain.User, error)
}

type NotificationRepository interface {
	ListForRecipient(ctx context.Context, recipientID int64, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, recipientID int64) (domain.Notification, error)
}
