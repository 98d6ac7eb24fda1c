// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses.
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignCompleted = "completed"
	CampaignPaused    = "paused"
)

type Campaign struct {
	ID                 int               `db:"id" json:"id"`
	UserID             string            `db:"user_id" json:"user_id"`
	Name               string            `db:"name" json:"name"`
	Status             string            `db:"status" json:"status"`
	Subject            string            `db:"subject" json:"subject"`
	Body               string            `db:"body" json:"body"`
	PlaceholderMapping map[string]string `db:"placeholder_mapping" json:"placeholder_mapping"`
	TotalRecipients    int               `db:"total_recipients" json:"total_recipients"`
	SentCount          int               `db:"sent_count" json:"sent_count"`
	FailedCount        int               `db:"failed_count" json:"failed_count"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time        `db:"updated_at" json:"updated_at,omitempty"`
	CompletedAt        *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

// Launchable reports whether a run may be started for the campaign.
// Active campaigns are already running and completed campaigns are
// terminal; draft and paused campaigns may be (re)launched.
func (c *Campaign) Launchable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignPaused
}
