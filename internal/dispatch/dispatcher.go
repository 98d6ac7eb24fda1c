// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mailmergehq/mailmerge-backend/internal/mailer"
	"github.com/mailmergehq/mailmerge-backend/internal/model"
	"github.com/mailmergehq/mailmerge-backend/internal/render"
)

// checkpointInterval is how many delivery attempts pass between
// aggregate counter writes. Checkpoints are eventually consistent
// progress markers, not transactional guarantees.
const checkpointInterval = 10

// CampaignStore is the slice of the persistent store the dispatcher
// needs for aggregate progress.
type CampaignStore interface {
	Checkpoint(campaignID, sentCount, failedCount int) error
	Finalize(campaignID, sentCount, failedCount int, status string, completedAt *time.Time) error
}

// RecipientStore records per-recipient terminal outcomes.
type RecipientStore interface {
	MarkSent(id int, sentAt time.Time) error
	MarkFailed(id int, errorMessage string) error
}

// Dispatcher drives one full send run for a campaign: render each
// recipient's message, deliver it, record the outcome, and keep the
// campaign's aggregate counters current.
type Dispatcher struct {
	Campaigns  CampaignStore
	Recipients RecipientStore
	Mailer     mailer.Mailer

	// Delay is the fixed pause after every attempt, success or
	// failure, bounding the send rate.
	Delay time.Duration

	Logger logrus.FieldLogger
}

// Run processes the given recipients strictly in order, one at a time.
// Counters are local to this invocation, seeded from the campaign's
// persisted aggregates so a resumed run continues where the last one
// checkpointed.
//
// A per-recipient send failure is recorded and the loop moves on; it
// never aborts the run. An invalid sender config rejects the whole run
// before any recipient is touched. If the context is cancelled the
// campaign is finalized as paused with the counts reached so far.
func (d *Dispatcher) Run(ctx context.Context, campaign *model.Campaign, recipients []*model.Recipient, cfg model.SenderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := d.logger().WithField("campaign_id", campaign.ID)
	log.WithField("recipients", len(recipients)).Info("dispatch run started")

	sentCount := campaign.SentCount
	failedCount := campaign.FailedCount
	attempts := 0

	for _, recipient := range recipients {
		if ctx.Err() != nil {
			break
		}

		subject, body := render.Render(campaign.Subject, campaign.Body, campaign.PlaceholderMapping, recipient.Data)

		messageID, err := d.Mailer.Send(ctx, recipient.Email, subject, body, cfg)
		if err != nil {
			failedCount++
			log.WithError(err).WithField("recipient_id", recipient.ID).Warn("send failed")
			if uerr := d.Recipients.MarkFailed(recipient.ID, err.Error()); uerr != nil {
				log.WithError(uerr).WithField("recipient_id", recipient.ID).Warn("failed to record recipient outcome")
			}
		} else {
			sentCount++
			if uerr := d.Recipients.MarkSent(recipient.ID, time.Now()); uerr != nil {
				log.WithError(uerr).WithField("recipient_id", recipient.ID).Warn("failed to record recipient outcome")
			}
			log.WithFields(logrus.Fields{
				"recipient_id": recipient.ID,
				"message_id":   messageID,
			}).Debug("sent")
		}

		attempts++
		if attempts%checkpointInterval == 0 {
			// Counters are cumulative in memory, so a lost
			// checkpoint is healed by the next successful one.
			if cerr := d.Campaigns.Checkpoint(campaign.ID, sentCount, failedCount); cerr != nil {
				log.WithError(cerr).Warn("checkpoint write failed")
			}
		}

		d.pause(ctx)
	}

	status := model.CampaignPaused
	var completedAt *time.Time
	if sentCount+failedCount == campaign.TotalRecipients {
		status = model.CampaignCompleted
		now := time.Now()
		completedAt = &now
	}

	log.WithFields(logrus.Fields{
		"sent":   sentCount,
		"failed": failedCount,
		"status": status,
	}).Info("dispatch run finished")

	return d.Campaigns.Finalize(campaign.ID, sentCount, failedCount, status, completedAt)
}

func (d *Dispatcher) pause(ctx context.Context) {
	if d.Delay <= 0 {
		return
	}

	timer := time.NewTimer(d.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (d *Dispatcher) logger() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.StandardLogger()
}
