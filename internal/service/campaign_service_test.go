package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/mailmergehq/mailmerge-backend/internal/errors"
	"github.com/mailmergehq/mailmerge-backend/internal/mailer"
	"github.com/mailmergehq/mailmerge-backend/internal/model"
	"github.com/mailmergehq/mailmerge-backend/internal/queue"
	"github.com/mailmergehq/mailmerge-backend/internal/service"
)

// --- fakes ---

type fakeCampaignRepo struct {
	campaigns map[int]*model.Campaign
	activated *model.Campaign
}

func newFakeCampaignRepo(cs ...*model.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[int]*model.Campaign{}}
	for _, c := range cs {
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) Create(c *model.Campaign) error {
	c.ID = len(r.campaigns) + 1
	c.CreatedAt = time.Now()
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

func (r *fakeCampaignRepo) ListCampaigns(offset, limit int, userID, status string) ([]*model.Campaign, int, error) {
	all := []*model.Campaign{}
	for i := len(r.campaigns); i >= 1; i-- {
		c := r.campaigns[i]
		if c == nil || c.UserID != userID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		all = append(all, c)
	}

	total := len(all)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeCampaignRepo) UpdateStatus(id int, status string) error {
	r.campaigns[id].Status = status
	return nil
}

func (r *fakeCampaignRepo) Activate(c *model.Campaign) error {
	c.Status = model.CampaignActive
	r.activated = c
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) Checkpoint(id, sent, failed int) error { return nil }

func (r *fakeCampaignRepo) Finalize(id, sent, failed int, status string, completedAt *time.Time) error {
	c := r.campaigns[id]
	c.SentCount = sent
	c.FailedCount = failed
	c.Status = status
	c.CompletedAt = completedAt
	return nil
}

type fakeRecipientRepo struct {
	rows   map[int]*model.Recipient
	nextID int
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{rows: map[int]*model.Recipient{}}
}

func (r *fakeRecipientRepo) BulkInsert(campaignID int, userID string, recipients []model.Recipient) (int, error) {
	for _, in := range recipients {
		exists := false
		for _, row := range r.rows {
			if row.CampaignID == campaignID && row.Email == in.Email {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		r.nextID++
		r.rows[r.nextID] = &model.Recipient{
			ID: r.nextID, CampaignID: campaignID, UserID: userID,
			Email: in.Email, Status: model.RecipientPending, Data: in.Data,
		}
	}

	total := 0
	for _, row := range r.rows {
		if row.CampaignID == campaignID {
			total++
		}
	}
	return total, nil
}

func (r *fakeRecipientRepo) ListPending(campaignID int) ([]*model.Recipient, error) {
	out := []*model.Recipient{}
	for id := 1; id <= r.nextID; id++ {
		row := r.rows[id]
		if row != nil && row.CampaignID == campaignID && row.Status == model.RecipientPending {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeRecipientRepo) MarkSent(id int, sentAt time.Time) error {
	r.rows[id].Status = model.RecipientSent
	r.rows[id].SentAt = &sentAt
	return nil
}

func (r *fakeRecipientRepo) MarkFailed(id int, errorMessage string) error {
	r.rows[id].Status = model.RecipientFailed
	r.rows[id].ErrorMessage = errorMessage
	return nil
}

func (r *fakeRecipientRepo) CountByStatus(campaignID int) (map[string]int, error) {
	stats := map[string]int{
		model.RecipientPending: 0,
		model.RecipientSent:    0,
		model.RecipientFailed:  0,
	}
	for _, row := range r.rows {
		if row.CampaignID == campaignID {
			stats[row.Status]++
		}
	}
	return stats, nil
}

type fakeQueue struct {
	published [][]byte
}

func (q *fakeQueue) Publish(topic string, payload []byte) error {
	q.published = append(q.published, payload)
	return nil
}

func (q *fakeQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	return nil
}

type stubMailer struct {
	sent    []string
	failFor map[string]bool
}

func (m *stubMailer) Send(ctx context.Context, to, subject, html string, cfg model.SenderConfig) (string, error) {
	if m.failFor[to] {
		return "", fmt.Errorf("rejected")
	}
	m.sent = append(m.sent, to)
	return "id-" + to, nil
}

// --- helpers ---

func validSenderConfig() model.SenderConfig {
	return model.SenderConfig{
		Provider:  model.ProviderSMTP,
		Host:      "smtp.example.com",
		Port:      587,
		FromEmail: "news@example.com",
		Password:  "secret",
	}
}

func launchRequest(n int) service.LaunchRequest {
	req := service.LaunchRequest{
		Subject:            "Hi {{name}}",
		Body:               "Hello {{name}}!",
		PlaceholderMapping: map[string]string{"{{name}}": "firstName"},
		SenderConfig:       validSenderConfig(),
	}
	for i := 1; i <= n; i++ {
		req.Recipients = append(req.Recipients, service.RecipientInput{
			Email: fmt.Sprintf("r%d@example.com", i),
			Data:  map[string]string{"firstName": fmt.Sprintf("User%d", i)},
		})
	}
	return req
}

func newService(campaignRepo *fakeCampaignRepo, recipientRepo *fakeRecipientRepo, q *fakeQueue, m mailer.Mailer) *service.CampaignService {
	return &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		Queue:         q,
		MailerFor:     func(string) mailer.Mailer { return m },
	}
}

// --- tests ---

func TestLaunchQueuesJobAndActivates(t *testing.T) {
	campaignRepo := newFakeCampaignRepo(&model.Campaign{ID: 1, UserID: "u1", Status: model.CampaignDraft})
	recipientRepo := newFakeRecipientRepo()
	q := &fakeQueue{}
	svc := newService(campaignRepo, recipientRepo, q, &stubMailer{})

	result, err := svc.Launch("u1", 1, launchRequest(3))
	require.NoError(t, err)

	assert.Equal(t, 1, result.CampaignID)
	assert.Equal(t, 3, result.TotalRecipients)
	assert.Equal(t, model.CampaignActive, campaignRepo.campaigns[1].Status)
	assert.Equal(t, 3, campaignRepo.activated.TotalRecipients)

	require.Len(t, q.published, 1)
	var job queue.DispatchJob
	require.NoError(t, json.Unmarshal(q.published[0], &job))
	assert.Equal(t, 1, job.CampaignID)
	assert.Equal(t, "smtp.example.com", job.SenderConfig.Host)
}

func TestLaunchRejectsDoubleLaunch(t *testing.T) {
	for _, status := range []string{model.CampaignActive, model.CampaignCompleted} {
		campaignRepo := newFakeCampaignRepo(&model.Campaign{ID: 1, UserID: "u1", Status: status})
		svc := newService(campaignRepo, newFakeRecipientRepo(), &fakeQueue{}, &stubMailer{})

		_, err := svc.Launch("u1", 1, launchRequest(2))
		require.Error(t, err, status)
		assert.IsType(t, &appErrors.ErrCampaignNotLaunchable{}, err)
	}
}

func TestLaunchRejectsEmptyRecipients(t *testing.T) {
	campaignRepo := newFakeCampaignRepo(&model.Campaign{ID: 1, UserID: "u1", Status: model.CampaignDraft})
	recipientRepo := newFakeRecipientRepo()
	svc := newService(campaignRepo, recipientRepo, &fakeQueue{}, &stubMailer{})

	_, err := svc.Launch("u1", 1, launchRequest(0))
	require.Error(t, err)
	assert.IsType(t, &appErrors.ErrEmptyRecipients{}, err)

	// no partial state created
	assert.Empty(t, recipientRepo.rows)
	assert.Equal(t, model.CampaignDraft, campaignRepo.campaigns[1].Status)
}

func TestLaunchRejectsInvalidSenderConfig(t *testing.T) {
	campaignRepo := newFakeCampaignRepo(&model.Campaign{ID: 1, UserID: "u1", Status: model.CampaignDraft})
	recipientRepo := newFakeRecipientRepo()
	svc := newService(campaignRepo, recipientRepo, &fakeQueue{}, &stubMailer{})

	req := launchRequest(2)
	req.SenderConfig.FromEmail = ""

	_, err := svc.Launch("u1", 1, req)
	require.Error(t, err)
	assert.Empty(t, recipientRepo.rows)
	assert.Equal(t, model.CampaignDraft, campaignRepo.campaigns[1].Status)
}

func TestLaunchHidesForeignCampaigns(t *testing.T) {
	campaignRepo := newFakeCampaignRepo(&model.Campaign{ID: 1, UserID: "owner", Status: model.CampaignDraft})
	svc := newService(campaignRepo, newFakeRecipientRepo(), &fakeQueue{}, &stubMailer{})

	_, err := svc.Launch("intruder", 1, launchRequest(2))
	require.Error(t, err)
	assert.IsType(t, &appErrors.ErrCampaignNotFound{}, err)
}

func TestRunDispatchEndToEnd(t *testing.T) {
	campaignRepo := newFakeCampaignRepo(&model.Campaign{ID: 1, UserID: "u1", Status: model.CampaignDraft})
	recipientRepo := newFakeRecipientRepo()
	q := &fakeQueue{}
	m := &stubMailer{failFor: map[string]bool{"r2@example.com": true}}
	svc := newService(campaignRepo, recipientRepo, q, m)

	_, err := svc.Launch("u1", 1, launchRequest(3))
	require.NoError(t, err)

	require.NoError(t, svc.RunDispatch(context.Background(), q.published[0]))

	campaign := campaignRepo.campaigns[1]
	assert.Equal(t, model.CampaignCompleted, campaign.Status)
	assert.Equal(t, 2, campaign.SentCount)
	assert.Equal(t, 1, campaign.FailedCount)
	assert.NotNil(t, campaign.CompletedAt)

	stats, _ := recipientRepo.CountByStatus(1)
	assert.Equal(t, 2, stats[model.RecipientSent])
	assert.Equal(t, 1, stats[model.RecipientFailed])
	assert.Equal(t, 0, stats[model.RecipientPending])
}

func TestRunDispatchSkipsNonActiveCampaign(t *testing.T) {
	campaignRepo := newFakeCampaignRepo(&model.Campaign{ID: 1, UserID: "u1", Status: model.CampaignCompleted})
	m := &stubMailer{}
	svc := newService(campaignRepo, newFakeRecipientRepo(), &fakeQueue{}, m)

	job, _ := json.Marshal(queue.DispatchJob{CampaignID: 1, SenderConfig: validSenderConfig()})
	require.NoError(t, svc.RunDispatch(context.Background(), job))
	assert.Empty(t, m.sent)
}

func TestTestSendSynchronousResult(t *testing.T) {
	m := &stubMailer{}
	svc := newService(newFakeCampaignRepo(), newFakeRecipientRepo(), &fakeQueue{}, m)

	id, err := svc.TestSend(context.Background(), "me@example.com", "Preview", "<p>Hello</p>", validSenderConfig())
	require.NoError(t, err)
	assert.Equal(t, "id-me@example.com", id)

	m.failFor = map[string]bool{"me@example.com": true}
	_, err = svc.TestSend(context.Background(), "me@example.com", "Preview", "<p>Hello</p>", validSenderConfig())
	assert.Error(t, err)
}

func TestRenderPreviewUsesStoredTemplate(t *testing.T) {
	campaignRepo := newFakeCampaignRepo(&model.Campaign{
		ID: 1, UserID: "u1", Status: model.CampaignDraft,
		Subject:            "Hi {{name}}",
		Body:               "Welcome, {{name}}",
		PlaceholderMapping: map[string]string{"{{name}}": "firstName"},
	})
	svc := newService(campaignRepo, newFakeRecipientRepo(), &fakeQueue{}, &stubMailer{})

	subject, body, err := svc.RenderPreview(1, "u1", map[string]string{"firstName": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana", subject)
	assert.Equal(t, "Welcome, Ana", body)
}

func TestGetCampaignDetailsIncludesStats(t *testing.T) {
	campaignRepo := newFakeCampaignRepo(&model.Campaign{ID: 1, UserID: "u1", Status: model.CampaignDraft})
	recipientRepo := newFakeRecipientRepo()
	q := &fakeQueue{}
	svc := newService(campaignRepo, recipientRepo, q, &stubMailer{})

	_, err := svc.Launch("u1", 1, launchRequest(4))
	require.NoError(t, err)

	details, err := svc.GetCampaignDetails(1, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, details.Stats["total"])
	assert.Equal(t, 4, details.Stats[model.RecipientPending])
}
