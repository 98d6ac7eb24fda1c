package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/mailmergehq/mailmerge-backend/internal/model"
)

type RecipientRepositoryInterface interface {
	// BulkInsert creates one pending row per recipient. Inserts are
	// idempotent per (campaign_id, email) so relaunching a paused
	// campaign never duplicates rows. Returns the total row count for
	// the campaign after the insert.
	BulkInsert(campaignID int, userID string, recipients []model.Recipient) (int, error)

	// ListPending returns the campaign's unattempted recipients in
	// input order.
	ListPending(campaignID int) ([]*model.Recipient, error)

	MarkSent(id int, sentAt time.Time) error
	MarkFailed(id int, errorMessage string) error
	CountByStatus(campaignID int) (map[string]int, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

func (r *RecipientRepository) BulkInsert(campaignID int, userID string, recipients []model.Recipient) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT INTO recipients (campaign_id, user_id, email, status, data, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (campaign_id, email) DO NOTHING
    `)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, rec := range recipients {
		data, err := json.Marshal(rec.Data)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to encode data for %s", rec.Email)
		}
		if _, err := stmt.Exec(campaignID, userID, rec.Email, model.RecipientPending, data); err != nil {
			return 0, errors.Wrapf(err, "failed to insert recipient %s", rec.Email)
		}
	}

	var total int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM recipients WHERE campaign_id=$1`, campaignID).Scan(&total); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit recipients")
	}
	return total, nil
}

func (r *RecipientRepository) ListPending(campaignID int) ([]*model.Recipient, error) {
	query := `
        SELECT id, campaign_id, user_id, email, status, data, error_message, sent_at, created_at
        FROM recipients
        WHERE campaign_id=$1 AND status=$2
        ORDER BY id ASC
    `
	rows, err := r.DB.Query(query, campaignID, model.RecipientPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []*model.Recipient{}
	for rows.Next() {
		var rec model.Recipient
		var data []byte
		var errorMessage sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.CampaignID, &rec.UserID, &rec.Email, &rec.Status,
			&data, &errorMessage, &rec.SentAt, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &rec.Data); err != nil {
				return nil, errors.Wrapf(err, "failed to decode data for recipient %d", rec.ID)
			}
		}
		rec.ErrorMessage = errorMessage.String
		recipients = append(recipients, &rec)
	}
	return recipients, rows.Err()
}

func (r *RecipientRepository) MarkSent(id int, sentAt time.Time) error {
	query := `UPDATE recipients SET status=$1, sent_at=$2, error_message=NULL WHERE id=$3`
	_, err := r.DB.Exec(query, model.RecipientSent, sentAt, id)
	return err
}

func (r *RecipientRepository) MarkFailed(id int, errorMessage string) error {
	query := `UPDATE recipients SET status=$1, error_message=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, model.RecipientFailed, errorMessage, id)
	return err
}

func (r *RecipientRepository) CountByStatus(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.RecipientPending: 0,
		model.RecipientSent:    0,
		model.RecipientFailed:  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
