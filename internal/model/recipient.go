// internal/model/recipient.go
package model

import "time"

// Recipient delivery statuses. Every recipient starts pending and is
// moved exactly once to sent or failed by the dispatcher.
const (
	RecipientPending = "pending"
	RecipientSent    = "sent"
	RecipientFailed  = "failed"
)

type Recipient struct {
	ID           int               `db:"id" json:"id"`
	CampaignID   int               `db:"campaign_id" json:"campaign_id"`
	UserID       string            `db:"user_id" json:"user_id"`
	Email        string            `db:"email" json:"email"`
	Status       string            `db:"status" json:"status"`
	Data         map[string]string `db:"data" json:"data"`
	ErrorMessage string            `db:"error_message,omitempty" json:"error_message,omitempty"`
	SentAt       *time.Time        `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}
