package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
)

type settingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

// GetProviderCredentials returns nil without error when the org has no
// stored credentials, so the resolver can fall through to the
// environment default.
func (r *settingsRepository) GetProviderCredentials(ctx context.Context, orgID uuid.UUID) (*model.ProviderCredentials, error) {
	query := `
		SELECT phone_number_id, access_token, business_account_id
		FROM org_settings WHERE org_id = $1
	`
	var creds model.ProviderCredentials
	err := r.db.GetContext(ctx, &creds, query, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get provider settings: %w", err)
	}
	return &creds, nil
}
