package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
)

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

// BulkUpsert writes every ledger row in a single transaction. The
// conflict target (campaign_id, contact_id) makes repeated dispatches
// converge: an existing row is overwritten with the latest outcome, so
// a contact skipped for a since-fixed reason flips back to pending on
// the next attempt. Any row failure rolls back the whole batch.
func (r *ledgerRepository) BulkUpsert(ctx context.Context, rows []*model.CampaignContact) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO campaign_contacts (
			id, campaign_id, contact_id, phone, name, email, custom_fields,
			status, skip_code, skip_reason, last_error, skipped_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (campaign_id, contact_id) DO UPDATE SET
			phone = EXCLUDED.phone,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			custom_fields = EXCLUDED.custom_fields,
			status = EXCLUDED.status,
			skip_code = EXCLUDED.skip_code,
			skip_reason = EXCLUDED.skip_reason,
			last_error = EXCLUDED.last_error,
			skipped_at = EXCLUDED.skipped_at,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.CreatedAt = now
		row.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, query,
			row.ID,
			row.CampaignID,
			row.ContactID,
			row.Phone,
			row.Name,
			row.Email,
			row.CustomFields,
			row.Status,
			row.SkipCode,
			row.SkipReason,
			row.LastError,
			row.SkippedAt,
			row.CreatedAt,
			row.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert ledger row for contact %s: %w", row.ContactID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger batch: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, filters *model.LedgerFilters) ([]*model.CampaignContact, error) {
	query := `SELECT * FROM campaign_contacts WHERE campaign_id = $1`
	args := []interface{}{campaignID}
	if filters != nil && filters.Status != "" {
		query += ` AND status = $2`
		args = append(args, filters.Status)
	}
	query += ` ORDER BY created_at`

	var rows []*model.CampaignContact
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list ledger rows: %w", err)
	}
	return rows, nil
}

func (r *ledgerRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM campaign_contacts WHERE campaign_id = $1 GROUP BY status`

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to count ledger rows: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// MarkSent guards on status = 'pending' so a redelivered queue job
// cannot double-send: the second delivery sees zero rows affected.
func (r *ledgerRepository) MarkSent(ctx context.Context, campaignID, contactID uuid.UUID, messageID string) (bool, error) {
	query := `
		UPDATE campaign_contacts
		SET status = $1, message_id = $2, sent_at = $3, last_error = NULL, updated_at = $3
		WHERE campaign_id = $4 AND contact_id = $5 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		model.LedgerStatusSent, messageID, time.Now(), campaignID, contactID, model.LedgerStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark ledger row sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ledgerRepository) MarkFailed(ctx context.Context, campaignID, contactID uuid.UUID, sendErr string) error {
	query := `
		UPDATE campaign_contacts
		SET status = $1, last_error = $2, updated_at = $3
		WHERE campaign_id = $4 AND contact_id = $5 AND status IN ($6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		model.LedgerStatusFailed, sendErr, time.Now(), campaignID, contactID,
		model.LedgerStatusPending, model.LedgerStatusSent,
	)
	if err != nil {
		return fmt.Errorf("failed to mark ledger row failed: %w", err)
	}
	return nil
}
