package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
	"github.com/jwalitptl/campaign-api/pkg/logger"
)

type snapshotter interface {
	Snapshot(tpl *model.Template) model.TemplateSnapshot
}

// SnapshotFreezer ensures a campaign carries exactly one immutable copy
// of its template. Once the campaign's spec hash is populated the
// freezer never writes again, so a retried dispatch cannot silently
// switch an in-flight campaign to an edited template.
type SnapshotFreezer struct {
	campaigns repository.CampaignRepository
	templates snapshotter
	logger    *logger.Logger
}

func NewSnapshotFreezer(campaigns repository.CampaignRepository, templates snapshotter, log *logger.Logger) *SnapshotFreezer {
	return &SnapshotFreezer{campaigns: campaigns, templates: templates, logger: log}
}

// EnsureFrozen returns the snapshot the dispatch must use: the stored
// one when the campaign is already frozen, otherwise a fresh capture of
// the current template, persisted best-effort. A write failure is
// logged and tolerated; the snapshot is a drift-detection aid, not a
// blocking dependency.
func (f *SnapshotFreezer) EnsureFrozen(ctx context.Context, campaign *model.Campaign, tpl *model.Template) (model.TemplateSnapshot, error) {
	if campaign.Frozen() {
		var snap model.TemplateSnapshot
		if len(campaign.TemplateSnapshot) > 0 {
			if err := json.Unmarshal(campaign.TemplateSnapshot, &snap); err != nil {
				return model.TemplateSnapshot{}, fmt.Errorf("stored template snapshot is corrupt: %w", err)
			}
			return snap, nil
		}
		// Hash recorded but snapshot body missing; fall through to a
		// fresh capture without overwriting the stored hash.
	}

	snap := f.templates.Snapshot(tpl)
	if campaign.Frozen() {
		return snap, nil
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return model.TemplateSnapshot{}, fmt.Errorf("failed to encode template snapshot: %w", err)
	}

	wrote, err := f.campaigns.FreezeTemplate(ctx, campaign.ID, body, snap.SpecHash, snap.ParameterFormat)
	if err != nil {
		f.logger.Error(err, "failed to persist template snapshot",
			"campaign_id", campaign.ID.String(), "template", snap.Name)
	} else if !wrote {
		// Someone froze it first; the stored copy wins on the next load.
		f.logger.Debug("campaign already frozen, snapshot write skipped",
			"campaign_id", campaign.ID.String())
	}

	return snap, nil
}
