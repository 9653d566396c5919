package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"booking/backend/internal/domain"
)

type NotificationRepo struct {
	db *bun.DB
}

func NewNotificationRepo(db *bun.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID int64, limit int) ([]domain.Notification, error) {
	var rows []domain.Notification
	err := r.db.NewSelect().
		Model(&rows).
		Where("recipient_user_id = ?", recipientID).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, recipientID int64) (domain.Notification, error) {
	var n domain.Notification
	err := r.db.NewUpdate().
		Model(&n).
		Set("read = TRUE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", notificationID).
		Where("recipient_user_id = ?", recipientID).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return domain.Notification{}, mapError(err)
	}
	return n, nil
}
