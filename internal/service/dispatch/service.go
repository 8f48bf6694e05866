package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
	"github.com/jwalitptl/campaign-api/internal/service/template"
	apperrors "github.com/jwalitptl/campaign-api/pkg/errors"
	"github.com/jwalitptl/campaign-api/pkg/logger"
	"github.com/jwalitptl/campaign-api/pkg/metrics"
)

// Service is the campaign dispatch engine. A single invocation runs the
// strictly sequential pipeline: resolve identities, freeze the template
// snapshot, precheck every contact, persist the ledger split, then
// route the payload. The ledger write is the linearization point that
// delivery-status reconciliation later reads from; no step runs
// concurrently with it. Two concurrent invocations for one campaign are
// not mutually exclusive here; convergence relies on the ledger's
// per-row conflict resolution.
type Service struct {
	campaigns repository.CampaignRepository
	templates template.TemplateService
	ledger    repository.LedgerRepository
	identity  *IdentityResolver
	freezer   *SnapshotFreezer
	router    *Router
	creds     CredentialResolver
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(
	campaigns repository.CampaignRepository,
	templates template.TemplateService,
	ledger repository.LedgerRepository,
	identity *IdentityResolver,
	freezer *SnapshotFreezer,
	router *Router,
	creds CredentialResolver,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		campaigns: campaigns,
		templates: templates,
		ledger:    ledger,
		identity:  identity,
		freezer:   freezer,
		router:    router,
		creds:     creds,
		metrics:   m,
		logger:    log,
	}
}

// Dispatch runs one send operation end to end and reports the outcome.
func (s *Service) Dispatch(ctx context.Context, req *model.DispatchRequest) (*model.DispatchResult, error) {
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.DispatchDuration.Observe(time.Since(started).Seconds())
		}
	}()

	// Fail fast on missing collaborators.
	campaign, err := s.campaigns.Get(ctx, req.CampaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("campaign", err)
		}
		return nil, apperrors.NewInternal(err)
	}

	tpl, err := s.templates.GetByName(ctx, req.TemplateName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("template", err)
		}
		return nil, apperrors.NewInternal(err)
	}

	// A scheduler job that outlived a cancel or reschedule is ignored
	// before anything is written. A re-check that could not be completed
	// surfaces as an error so the scheduler retries.
	ignored, reason, err := s.router.StaleTrigger(ctx, campaign, req.Trigger, req.ScheduledAt)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if ignored {
		if s.metrics != nil {
			s.metrics.StaleTriggersIgnored.Inc()
			s.metrics.DispatchTotal.WithLabelValues("ignored").Inc()
		}
		s.logger.Info("ignoring stale scheduler trigger",
			"campaign_id", campaign.ID.String(), "reason", reason)
		return &model.DispatchResult{
			Status:  model.DispatchStatusIgnored,
			Message: reason,
		}, nil
	}

	variables := mergeVariables(campaign.TemplateVariables, req.TemplateVariables)

	inputs, err := s.recipientInputs(ctx, campaign, req.Contacts)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return &model.DispatchResult{
			Status:  model.DispatchStatusSkipped,
			Message: "campaign has no recipients",
		}, nil
	}

	recipients, err := s.identity.Resolve(ctx, inputs)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.freezer.EnsureFrozen(ctx, campaign, tpl)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	// Admission is judged against the frozen definition, never the live
	// one: what the precheck demands must match what gets sent.
	requirements := RequirementsOf(snapshot)

	var (
		admitted []model.Recipient
		skipped  []model.SkippedRecipient
		rows     []*model.CampaignContact
	)
	now := time.Now()
	for _, rec := range recipients {
		if rejection := Precheck(rec, requirements, variables); rejection != nil {
			skipped = append(skipped, *rejection)
			rows = append(rows, skippedRow(campaign, rec, rejection, now))
			if s.metrics != nil {
				s.metrics.DispatchContacts.WithLabelValues("skipped").Inc()
			}
			continue
		}
		admitted = append(admitted, rec)
		rows = append(rows, pendingRow(campaign, rec))
		if s.metrics != nil {
			s.metrics.DispatchContacts.WithLabelValues("admitted").Inc()
		}
	}

	// One batched upsert: a write failure here aborts the dispatch so
	// no contact is ever enqueued while unaccounted for in the ledger.
	ledgerStarted := time.Now()
	if err := s.ledger.BulkUpsert(ctx, rows); err != nil {
		if s.metrics != nil {
			s.metrics.LedgerWriteErrors.Inc()
			s.metrics.DispatchTotal.WithLabelValues("error").Inc()
		}
		return nil, apperrors.NewLedgerWrite(err)
	}
	if s.metrics != nil {
		s.metrics.LedgerWriteLatency.Observe(time.Since(ledgerStarted).Seconds())
	}

	if len(admitted) == 0 {
		if s.metrics != nil {
			s.metrics.DispatchTotal.WithLabelValues("skipped").Inc()
		}
		return &model.DispatchResult{
			Status:          model.DispatchStatusSkipped,
			Count:           0,
			Skipped:         len(skipped),
			Message:         "no contacts passed validation",
			SkippedContacts: skipped,
		}, nil
	}

	creds, err := s.creds.Resolve(ctx, campaign.OrgID, req.Credentials)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if !creds.Complete() {
		return nil, apperrors.NewBadRequest("provider credentials are not configured", nil)
	}

	traceID := NewTraceID(campaign.ID)
	payload := BuildPayload(campaign.ID, traceID, admitted, variables, snapshot, creds)

	if err := s.router.Route(ctx, payload); err != nil {
		if s.metrics != nil {
			s.metrics.DispatchTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DispatchTotal.WithLabelValues("queued").Inc()
		s.metrics.JobsEnqueued.Inc()
	}
	s.logger.WithTrace(traceID).Info("dispatch accepted",
		"campaign_id", campaign.ID.String(),
		"admitted", len(admitted),
		"skipped", len(skipped))

	return &model.DispatchResult{
		Status:          model.DispatchStatusQueued,
		Count:           len(admitted),
		Skipped:         len(skipped),
		TraceID:         traceID,
		Message:         fmt.Sprintf("%d contact(s) queued, %d skipped", len(admitted), len(skipped)),
		SkippedContacts: skipped,
	}, nil
}

// recipientInputs returns the explicit contact list when one was
// supplied, otherwise derives recipients from the campaign's existing
// ledger rows (campaign membership).
func (s *Service) recipientInputs(ctx context.Context, campaign *model.Campaign, explicit []model.RecipientInput) ([]model.RecipientInput, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}

	rows, err := s.ledger.ListByCampaign(ctx, campaign.ID, nil)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to load campaign membership: %w", err))
	}

	inputs := make([]model.RecipientInput, 0, len(rows))
	for _, row := range rows {
		contactID := row.ContactID
		inputs = append(inputs, model.RecipientInput{
			ContactID:    &contactID,
			Phone:        row.Phone,
			Name:         row.Name,
			Email:        row.Email,
			CustomFields: row.CustomFields,
		})
	}
	return inputs, nil
}

func mergeVariables(base, override model.JSONMap) model.JSONMap {
	if len(base) == 0 && len(override) == 0 {
		return model.JSONMap{}
	}
	merged := make(model.JSONMap, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func pendingRow(campaign *model.Campaign, rec model.Recipient) *model.CampaignContact {
	return &model.CampaignContact{
		CampaignID:   campaign.ID,
		ContactID:    rec.ContactID,
		Phone:        rec.Phone,
		Name:         rec.Name,
		Email:        rec.Email,
		CustomFields: rec.CustomFields,
		Status:       model.LedgerStatusPending,
	}
}

func skippedRow(campaign *model.Campaign, rec model.Recipient, rejection *model.SkippedRecipient, at time.Time) *model.CampaignContact {
	code := rejection.Code
	reason := rejection.Reason
	skippedAt := at
	return &model.CampaignContact{
		CampaignID:   campaign.ID,
		ContactID:    rec.ContactID,
		Phone:        rec.Phone,
		Name:         rec.Name,
		Email:        rec.Email,
		CustomFields: rec.CustomFields,
		Status:       model.LedgerStatusSkipped,
		SkipCode:     &code,
		SkipReason:   &reason,
		SkippedAt:    &skippedAt,
	}
}
