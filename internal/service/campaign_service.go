// internal/service/campaign_service.go
package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mailmergehq/mailmerge-backend/internal/dispatch"
	appErrors "github.com/mailmergehq/mailmerge-backend/internal/errors"
	"github.com/mailmergehq/mailmerge-backend/internal/mailer"
	"github.com/mailmergehq/mailmerge-backend/internal/model"
	"github.com/mailmergehq/mailmerge-backend/internal/queue"
	"github.com/mailmergehq/mailmerge-backend/internal/render"
	"github.com/mailmergehq/mailmerge-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	Queue         queue.Queue

	// MailerFor resolves the transport for a sender config provider.
	// Defaults to mailer.ForProvider; tests swap in fakes.
	MailerFor func(provider string) mailer.Mailer

	// SendDelay is forwarded to the dispatcher.
	SendDelay time.Duration

	Logger logrus.FieldLogger
}

// RecipientInput is one uploaded row in a launch payload.
type RecipientInput struct {
	Email string            `json:"email"`
	Data  map[string]string `json:"data"`
}

// LaunchRequest is the full campaign payload supplied by the launch
// trigger: template, recipients, mapping and sender credentials.
type LaunchRequest struct {
	Subject            string             `json:"subject"`
	Body               string             `json:"body"`
	Recipients         []RecipientInput   `json:"recipients"`
	PlaceholderMapping map[string]string  `json:"placeholder_mapping"`
	SenderConfig       model.SenderConfig `json:"sender_config"`
}

type LaunchResult struct {
	CampaignID      int `json:"campaign_id"`
	TotalRecipients int `json:"total_recipients"`
}

// CampaignDetails is a campaign plus live recipient delivery stats.
type CampaignDetails struct {
	model.Campaign
	Stats map[string]int `json:"stats"`
}

// Launch validates the payload, persists the recipients, marks the
// campaign active and enqueues the dispatch job. It returns as soon as
// the job is queued; delivery happens in the background.
func (s *CampaignService) Launch(userID string, campaignID int, req LaunchRequest) (*LaunchResult, error) {
	campaign, err := s.getOwned(campaignID, userID)
	if err != nil {
		return nil, err
	}

	if !campaign.Launchable() {
		return nil, appErrors.NewCampaignNotLaunchable(campaignID, campaign.Status)
	}
	if len(req.Recipients) == 0 {
		return nil, appErrors.NewEmptyRecipients(campaignID)
	}
	if err := req.SenderConfig.Validate(); err != nil {
		return nil, err
	}

	recipients := make([]model.Recipient, 0, len(req.Recipients))
	for _, in := range req.Recipients {
		if strings.TrimSpace(in.Email) == "" {
			return nil, errors.New("launch payload contains a recipient with no email")
		}
		recipients = append(recipients, model.Recipient{Email: in.Email, Data: in.Data})
	}

	total, err := s.RecipientRepo.BulkInsert(campaignID, userID, recipients)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert recipients")
	}

	campaign.Subject = req.Subject
	campaign.Body = req.Body
	campaign.PlaceholderMapping = req.PlaceholderMapping
	campaign.TotalRecipients = total
	if err := s.CampaignRepo.Activate(campaign); err != nil {
		return nil, errors.Wrap(err, "failed to activate campaign")
	}

	job, err := json.Marshal(queue.DispatchJob{CampaignID: campaignID, SenderConfig: req.SenderConfig})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode dispatch job")
	}
	if err := s.Queue.Publish(queue.TopicCampaignDispatch, job); err != nil {
		return nil, errors.Wrap(err, "failed to enqueue dispatch job")
	}

	s.logger().WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"recipients":  total,
	}).Info("campaign launched")

	return &LaunchResult{CampaignID: campaignID, TotalRecipients: total}, nil
}

// RunDispatch consumes one dispatch job: load the campaign and its
// pending recipients, then run the sequential send loop. Wired as the
// queue subscriber by cmd/server and cmd/worker.
func (s *CampaignService) RunDispatch(ctx context.Context, payload []byte) error {
	var job queue.DispatchJob
	if err := json.Unmarshal(payload, &job); err != nil {
		s.logger().WithError(err).Warn("invalid dispatch job payload")
		return nil // malformed jobs are dropped, not retried
	}

	campaign, err := s.CampaignRepo.GetByID(job.CampaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignActive {
		s.logger().WithFields(logrus.Fields{
			"campaign_id": campaign.ID,
			"status":      campaign.Status,
		}).Warn("skipping dispatch for non-active campaign")
		return nil
	}

	pending, err := s.RecipientRepo.ListPending(job.CampaignID)
	if err != nil {
		return err
	}

	d := &dispatch.Dispatcher{
		Campaigns:  s.CampaignRepo,
		Recipients: s.RecipientRepo,
		Mailer:     s.mailerFor(job.SenderConfig.Provider),
		Delay:      s.SendDelay,
		Logger:     s.logger(),
	}
	return d.Run(ctx, campaign, pending, job.SenderConfig)
}

// TestSend renders nothing: it delivers the given subject and body
// as-is to a single address and surfaces the result synchronously.
func (s *CampaignService) TestSend(ctx context.Context, to, subject, body string, cfg model.SenderConfig) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("test send requires a recipient address")
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return s.mailerFor(cfg.Provider).Send(ctx, to, subject, body, cfg)
}

// RenderPreview renders the stored template against an inline record,
// for the wizard's preview step.
func (s *CampaignService) RenderPreview(campaignID int, userID string, record map[string]string) (string, string, error) {
	campaign, err := s.getOwned(campaignID, userID)
	if err != nil {
		return "", "", err
	}
	subject, body := render.Render(campaign.Subject, campaign.Body, campaign.PlaceholderMapping, record)
	return subject, body, nil
}

func (s *CampaignService) CreateCampaign(userID, name, subject, body string, mapping map[string]string) (*model.Campaign, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("campaign name cannot be empty")
	}

	c := &model.Campaign{
		UserID:             userID,
		Name:               name,
		Subject:            subject,
		Body:               body,
		PlaceholderMapping: mapping,
		Status:             model.CampaignDraft,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches the user's campaigns with pagination.
func (s *CampaignService) ListCampaigns(userID string, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, userID, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetails fetches a campaign with live recipient stats.
func (s *CampaignService) GetCampaignDetails(campaignID int, userID string) (*CampaignDetails, error) {
	campaign, err := s.getOwned(campaignID, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.RecipientRepo.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}
	stats["total"] = stats[model.RecipientPending] + stats[model.RecipientSent] + stats[model.RecipientFailed]

	return &CampaignDetails{Campaign: *campaign, Stats: stats}, nil
}

func (s *CampaignService) getOwned(campaignID int, userID string) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	// ownership filter: rows of other users are reported as missing
	if campaign.UserID != userID {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	return campaign, nil
}

func (s *CampaignService) mailerFor(provider string) mailer.Mailer {
	if s.MailerFor != nil {
		return s.MailerFor(provider)
	}
	return mailer.ForProvider(provider)
}

func (s *CampaignService) logger() logrus.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return logrus.StandardLogger()
}
