package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
)

// All repository interfaces in one file
type (
	// CampaignRepository handles campaign rows, including the
	// write-once frozen-template columns.
	CampaignRepository interface {
		Create(ctx context.Context, campaign *model.Campaign) error
		Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
		Update(ctx context.Context, campaign *model.Campaign) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) error
		List(ctx context.Context, filters *model.CampaignFilters) ([]*model.Campaign, error)
		// FreezeTemplate writes the frozen-template columns only when
		// template_spec_hash is still NULL. Returns false when the
		// campaign was already frozen.
		FreezeTemplate(ctx context.Context, id uuid.UUID, snapshot json.RawMessage, specHash, parameterFormat string) (bool, error)
	}

	// TemplateRepository reads canonical template definitions.
	TemplateRepository interface {
		GetByName(ctx context.Context, name string) (*model.Template, error)
	}

	// ContactRepository reads contact identities. The dispatch engine
	// resolves, never creates.
	ContactRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Contact, error)
		// LookupByPhones matches contacts against any of the candidate
		// phone values (raw and normalized forms are both passed, since
		// either may be the stored one).
		LookupByPhones(ctx context.Context, phones []string) ([]*model.ContactRef, error)
		GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Contact, error)
	}

	// SettingsRepository reads per-organization provider settings, the
	// middle entry in the credential precedence order.
	SettingsRepository interface {
		GetProviderCredentials(ctx context.Context, orgID uuid.UUID) (*model.ProviderCredentials, error)
	}

	// LedgerRepository owns campaign_contacts rows.
	LedgerRepository interface {
		// BulkUpsert persists every row in one transaction, keyed on
		// (campaign_id, contact_id): existing rows are overwritten with
		// the latest outcome (last validation wins). Any row failure
		// rolls the whole batch back.
		BulkUpsert(ctx context.Context, rows []*model.CampaignContact) error
		ListByCampaign(ctx context.Context, campaignID uuid.UUID, filters *model.LedgerFilters) ([]*model.CampaignContact, error)
		CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
		// MarkSent flips a pending row to sent. Returns false when the
		// row was no longer pending, which lets a redelivered job skip
		// contacts already handled.
		MarkSent(ctx context.Context, campaignID, contactID uuid.UUID, messageID string) (bool, error)
		MarkFailed(ctx context.Context, campaignID, contactID uuid.UUID, sendErr string) error
	}
)
