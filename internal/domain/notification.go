package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID              int64     `bun:"id,pk,autoincrement"`
	Content         string    `bun:"content,notnull"`
	RecipientUserID int64     `bun:"recipient_user_id,notnull"`
	Read            bool      `bun:"read,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

func (n *Notification) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		if n.UpdatedAt.IsZero() {
			n.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		n.UpdatedAt = now
	}
	return nil
}

// JobKindCancellationMail identifies the job emitted after an appointment is canceled.
const JobKindCancellationMail = "cancellation_mail"

// CancellationMail is the payload of a JobKindCancellationMail job: a snapshot
// of the canceled appointment with the identities the mail needs.
type CancellationMail struct {
	AppointmentID  string    `json:"appointment_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	CanceledAt     time.Time `json:"canceled_at"`
	ProviderID     int64     `json:"provider_id"`
	ProviderName   string    `json:"provider_name"`
	ProviderEmail  string    `json:"provider_email"`
	RequesterID    int64     `json:"requester_id"`
	RequesterName  string    `json:"requester_name"`
	RequesterEmail string    `json:"requester_email,omitempty"`
}
