package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CancellationLeadTime is the minimum time before a slot at which it can still be canceled.
const CancellationLeadTime = 2 * time.Hour

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	RequesterID int64      `bun:"requester_id,notnull"`
	ProviderID  int64      `bun:"provider_id,notnull"`
	ScheduledAt time.Time  `bun:"scheduled_at,notnull"`
	CanceledAt  *time.Time `bun:"canceled_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`

	Provider  *User `bun:"rel:belongs-to,join:provider_id=id"`
	Requester *User `bun:"rel:belongs-to,join:requester_id=id"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// Active reports whether the appointment still holds its slot.
func (a Appointment) Active() bool {
	return a.CanceledAt == nil
}

// Past reports whether the slot has already started at now.
func (a Appointment) Past(now time.Time) bool {
	return a.ScheduledAt.Before(now)
}

// Cancelable reports whether the appointment is active and now is strictly
// before the start of the cancellation lead time.
func (a Appointment) Cancelable(now time.Time) bool {
	if !a.Active() {
		return false
	}
	return now.Before(a.ScheduledAt.Add(-CancellationLeadTime))
}
