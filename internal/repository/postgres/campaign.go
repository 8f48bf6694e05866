package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
)

type campaignRepository struct {
	db *sqlx.DB
}

func NewCampaignRepository(db *sqlx.DB) repository.CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	query := `
		INSERT INTO campaigns (id, org_id, name, status, scheduled_at, template_name, template_variables, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		campaign.ID,
		campaign.OrgID,
		campaign.Name,
		campaign.Status,
		campaign.ScheduledAt,
		campaign.TemplateName,
		campaign.TemplateVariables,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (r *campaignRepository) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT * FROM campaigns WHERE id = $1`
	var campaign model.Campaign
	err := r.db.GetContext(ctx, &campaign, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (r *campaignRepository) Update(ctx context.Context, campaign *model.Campaign) error {
	query := `
		UPDATE campaigns
		SET name = $1, status = $2, scheduled_at = $3, template_name = $4, template_variables = $5, updated_at = $6
		WHERE id = $7
	`
	_, err := r.db.ExecContext(ctx, query,
		campaign.Name,
		campaign.Status,
		campaign.ScheduledAt,
		campaign.TemplateName,
		campaign.TemplateVariables,
		time.Now(),
		campaign.ID,
	)
	return err
}

func (r *campaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

func (r *campaignRepository) List(ctx context.Context, filters *model.CampaignFilters) ([]*model.Campaign, error) {
	query := `SELECT * FROM campaigns WHERE org_id = $1`
	args := []interface{}{filters.OrgID}
	if filters.Status != "" {
		query += ` AND status = $2`
		args = append(args, filters.Status)
	}
	query += ` ORDER BY created_at DESC`

	var campaigns []*model.Campaign
	err := r.db.SelectContext(ctx, &campaigns, query, args...)
	return campaigns, err
}

// FreezeTemplate writes the frozen-template columns only if no hash is
// stored yet. The WHERE clause is the write-once guard: a concurrent or
// retried freeze sees zero rows affected and reports already-frozen.
func (r *campaignRepository) FreezeTemplate(ctx context.Context, id uuid.UUID, snapshot json.RawMessage, specHash, parameterFormat string) (bool, error) {
	query := `
		UPDATE campaigns
		SET template_snapshot = $1, template_spec_hash = $2, template_parameter_format = $3, updated_at = $4
		WHERE id = $5 AND template_spec_hash IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, snapshot, specHash, parameterFormat, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to freeze template snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
