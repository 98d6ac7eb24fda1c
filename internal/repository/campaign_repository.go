package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	appErrors "github.com/mailmergehq/mailmerge-backend/internal/errors"
	"github.com/mailmergehq/mailmerge-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, userID, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status string) error

	// Activate writes the launch payload (template, mapping, total)
	// and moves the campaign to active in one statement.
	Activate(c *model.Campaign) error

	// Checkpoint persists the running aggregate counters. Last write
	// wins; no optimistic concurrency control.
	Checkpoint(campaignID, sentCount, failedCount int) error

	// Finalize writes the terminal counters and status. completedAt is
	// only non-nil for completed runs.
	Finalize(campaignID, sentCount, failedCount int, status string, completedAt *time.Time) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, user_id, name, status, subject, body, placeholder_mapping,
       total_recipients, sent_count, failed_count, created_at, updated_at, completed_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}

	mapping, err := marshalMapping(c.PlaceholderMapping)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO campaigns (user_id, name, status, subject, body, placeholder_mapping, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.UserID, c.Name, c.Status, c.Subject, c.Body, mapping, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE id=$1`, campaignColumns)

	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, userID, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE user_id=$1`, campaignColumns)
	args := []interface{}{userID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE user_id=$1`
	countArgs := []interface{}{userID}
	if status != "" {
		countQuery += " AND status=$2"
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) Activate(c *model.Campaign) error {
	mapping, err := marshalMapping(c.PlaceholderMapping)
	if err != nil {
		return err
	}

	query := `
        UPDATE campaigns
        SET subject=$1, body=$2, placeholder_mapping=$3, total_recipients=$4,
            status=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err = r.DB.Exec(query, c.Subject, c.Body, mapping, c.TotalRecipients, model.CampaignActive, c.ID)
	return err
}

func (r *CampaignRepository) Checkpoint(campaignID, sentCount, failedCount int) error {
	query := `UPDATE campaigns SET sent_count=$1, failed_count=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, sentCount, failedCount, campaignID)
	return err
}

func (r *CampaignRepository) Finalize(campaignID, sentCount, failedCount int, status string, completedAt *time.Time) error {
	query := `
        UPDATE campaigns
        SET sent_count=$1, failed_count=$2, status=$3, completed_at=$4, updated_at=NOW()
        WHERE id=$5
    `
	_, err := r.DB.Exec(query, sentCount, failedCount, status, completedAt, campaignID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var mapping []byte
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Status, &c.Subject, &c.Body, &mapping,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount,
		&c.CreatedAt, &c.UpdatedAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &c.PlaceholderMapping); err != nil {
			return nil, errors.Wrap(err, "failed to decode placeholder mapping")
		}
	}
	return &c, nil
}

func marshalMapping(mapping map[string]string) ([]byte, error) {
	if mapping == nil {
		mapping = map[string]string{}
	}
	raw, err := json.Marshal(mapping)
	return raw, errors.Wrap(err, "failed to encode placeholder mapping")
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
