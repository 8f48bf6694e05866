package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
)

var errNoRows = sql.ErrNoRows

// In-memory doubles for the repository interfaces the dispatch engine
// touches. Behavior mirrors the postgres implementations where the
// engine depends on it: the freeze write is once-only and the ledger
// upsert converges on (campaign_id, contact_id).

type fakeCampaignRepo struct {
	campaigns map[uuid.UUID]*model.Campaign
	getErr    error
	// okGets lets getErr simulate a flaky store: that many Get calls
	// succeed before the error kicks in.
	okGets  int
	gets    int
	freezes int
}

func newFakeCampaignRepo(campaigns ...*model.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[uuid.UUID]*model.Campaign{}}
	for _, c := range campaigns {
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) Get(_ context.Context, id uuid.UUID) (*model.Campaign, error) {
	r.gets++
	if r.getErr != nil && r.gets > r.okGets {
		return nil, r.getErr
	}
	c, ok := r.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, errNoRows)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) Update(_ context.Context, c *model.Campaign) error {
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.CampaignStatus) error {
	if c, ok := r.campaigns[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeCampaignRepo) List(_ context.Context, _ *model.CampaignFilters) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range r.campaigns {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeCampaignRepo) FreezeTemplate(_ context.Context, id uuid.UUID, snapshot json.RawMessage, specHash, parameterFormat string) (bool, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return false, errNoRows
	}
	if c.Frozen() {
		return false, nil
	}
	r.freezes++
	c.TemplateSnapshot = snapshot
	c.TemplateSpecHash = &specHash
	c.TemplateParamFmt = &parameterFormat
	return true, nil
}

type fakeContactRepo struct {
	contacts map[uuid.UUID]*model.Contact
	byPhone  map[string]uuid.UUID
}

func newFakeContactRepo(contacts ...*model.Contact) *fakeContactRepo {
	r := &fakeContactRepo{
		contacts: map[uuid.UUID]*model.Contact{},
		byPhone:  map[string]uuid.UUID{},
	}
	for _, c := range contacts {
		r.contacts[c.ID] = c
		r.byPhone[c.Phone] = c.ID
	}
	return r
}

func (r *fakeContactRepo) Get(_ context.Context, id uuid.UUID) (*model.Contact, error) {
	c, ok := r.contacts[id]
	if !ok {
		return nil, errNoRows
	}
	return c, nil
}

func (r *fakeContactRepo) LookupByPhones(_ context.Context, phones []string) ([]*model.ContactRef, error) {
	var out []*model.ContactRef
	seen := map[uuid.UUID]bool{}
	for _, p := range phones {
		if id, ok := r.byPhone[p]; ok && !seen[id] {
			seen[id] = true
			out = append(out, &model.ContactRef{ID: id, Phone: r.contacts[id].Phone})
		}
	}
	return out, nil
}

func (r *fakeContactRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.Contact, error) {
	var out []*model.Contact
	for _, id := range ids {
		if c, ok := r.contacts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type ledgerKey struct {
	campaignID uuid.UUID
	contactID  uuid.UUID
}

type fakeLedgerRepo struct {
	rows      map[ledgerKey]*model.CampaignContact
	upsertErr error
	upserts   int
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{rows: map[ledgerKey]*model.CampaignContact{}}
}

func (r *fakeLedgerRepo) BulkUpsert(_ context.Context, rows []*model.CampaignContact) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	for _, row := range rows {
		cp := *row
		r.rows[ledgerKey{row.CampaignID, row.ContactID}] = &cp
	}
	return nil
}

func (r *fakeLedgerRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID, filters *model.LedgerFilters) ([]*model.CampaignContact, error) {
	var out []*model.CampaignContact
	for k, row := range r.rows {
		if k.campaignID != campaignID {
			continue
		}
		if filters != nil && filters.Status != "" && string(row.Status) != filters.Status {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeLedgerRepo) CountByStatus(_ context.Context, campaignID uuid.UUID) (map[string]int, error) {
	counts := map[string]int{}
	for k, row := range r.rows {
		if k.campaignID == campaignID {
			counts[string(row.Status)]++
		}
	}
	return counts, nil
}

func (r *fakeLedgerRepo) MarkSent(_ context.Context, campaignID, contactID uuid.UUID, messageID string) (bool, error) {
	row, ok := r.rows[ledgerKey{campaignID, contactID}]
	if !ok || row.Status != model.LedgerStatusPending {
		return false, nil
	}
	row.Status = model.LedgerStatusSent
	row.MessageID = &messageID
	return true, nil
}

func (r *fakeLedgerRepo) MarkFailed(_ context.Context, campaignID, contactID uuid.UUID, sendErr string) error {
	if row, ok := r.rows[ledgerKey{campaignID, contactID}]; ok {
		row.Status = model.LedgerStatusFailed
		row.LastError = &sendErr
	}
	return nil
}

func (r *fakeLedgerRepo) row(campaignID, contactID uuid.UUID) *model.CampaignContact {
	return r.rows[ledgerKey{campaignID, contactID}]
}

type fakeSettingsRepo struct {
	creds *model.ProviderCredentials
	err   error
}

func (r *fakeSettingsRepo) GetProviderCredentials(_ context.Context, _ uuid.UUID) (*model.ProviderCredentials, error) {
	return r.creds, r.err
}

type fakeQueue struct {
	queue    string
	payloads []interface{}
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, queue string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.queue = queue
	q.payloads = append(q.payloads, payload)
	return nil
}

func (q *fakeQueue) Dequeue(_ context.Context, _ string, _ time.Duration) ([]byte, error) {
	return nil, nil
}

func (q *fakeQueue) Depth(_ context.Context, _ string) (int64, error) {
	return int64(len(q.payloads)), nil
}

func (q *fakeQueue) Close() error { return nil }

type fakeTemplates struct {
	tpl *model.Template
	err error
}

func (t *fakeTemplates) GetByName(_ context.Context, _ string) (*model.Template, error) {
	return t.tpl, t.err
}

func (t *fakeTemplates) Snapshot(tpl *model.Template) model.TemplateSnapshot {
	return model.TemplateSnapshot{
		Name:            tpl.Name,
		Language:        tpl.Language,
		Category:        tpl.Category,
		ParameterFormat: tpl.ParameterFormat,
		SpecHash:        tpl.SpecHash,
		Components:      tpl.Components,
		CapturedAt:      time.Now().UTC(),
	}
}
