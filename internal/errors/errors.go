// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is returned when a campaign id does not exist or
// is not visible to the requesting user.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCampaignNotLaunchable is returned for a double launch: the
// campaign is already running or already finished.
type ErrCampaignNotLaunchable struct {
	CampaignID int
	Status     string
}

func (e *ErrCampaignNotLaunchable) Error() string {
	return fmt.Sprintf("campaign %d cannot be launched in status %q", e.CampaignID, e.Status)
}

func NewCampaignNotLaunchable(id int, status string) error {
	return &ErrCampaignNotLaunchable{CampaignID: id, Status: status}
}

// ErrEmptyRecipients rejects a launch with no recipients before any
// rows are created.
type ErrEmptyRecipients struct {
	CampaignID int
}

func (e *ErrEmptyRecipients) Error() string {
	return fmt.Sprintf("campaign %d launch has no recipients", e.CampaignID)
}

func NewEmptyRecipients(id int) error {
	return &ErrEmptyRecipients{CampaignID: id}
}
