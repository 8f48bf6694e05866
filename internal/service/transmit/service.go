package transmit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
	"github.com/jwalitptl/campaign-api/pkg/circuitbreaker"
	"github.com/jwalitptl/campaign-api/pkg/logger"
	"github.com/jwalitptl/campaign-api/pkg/metrics"
)

// Sender delivers one template message to one recipient.
type Sender interface {
	SendTemplate(ctx context.Context, creds model.ProviderCredentials, to string, tpl model.TemplateSnapshot, variables model.JSONMap) (string, error)
}

// Summary reports what a transmission run did.
type Summary struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	TraceID    string    `json:"trace_id"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}

// Service is the transmission loop: it consumes a WorkflowPayload and
// performs the per-contact provider calls. The payload is
// self-contained, so the loop never re-resolves identity, re-validates
// eligibility or re-fetches the template. Jobs arrive at-least-once;
// the pending-status guard on the ledger row makes redelivery safe.
type Service struct {
	ledger    repository.LedgerRepository
	campaigns repository.CampaignRepository
	sender    Sender
	breaker   *circuitbreaker.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(
	ledger repository.LedgerRepository,
	campaigns repository.CampaignRepository,
	sender Sender,
	breaker *circuitbreaker.CircuitBreaker,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		ledger:    ledger,
		campaigns: campaigns,
		sender:    sender,
		breaker:   breaker,
		metrics:   m,
		logger:    log,
	}
}

// Process runs the send loop for one payload.
func (s *Service) Process(ctx context.Context, payload model.WorkflowPayload) (*Summary, error) {
	log := s.logger.WithTrace(payload.TraceID)
	summary := &Summary{CampaignID: payload.CampaignID, TraceID: payload.TraceID}

	if err := s.campaigns.UpdateStatus(ctx, payload.CampaignID, model.CampaignStatusSending); err != nil {
		log.Error(err, "failed to mark campaign sending", "campaign_id", payload.CampaignID.String())
	}

	// Snapshot the rows still pending so a redelivered job never
	// re-sends contacts a previous delivery already handled.
	pending, err := s.pendingContacts(ctx, payload.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger before transmission: %w", err)
	}

	for _, rec := range payload.Contacts {
		if !pending[rec.ContactID] {
			summary.Skipped++
			continue
		}

		messageID, sendErr := s.send(ctx, payload, rec)
		if sendErr != nil {
			summary.Failed++
			if s.metrics != nil {
				s.metrics.ProviderSends.WithLabelValues("failed").Inc()
			}
			log.Error(sendErr, "send failed", "contact_id", rec.ContactID.String())
			if err := s.ledger.MarkFailed(ctx, payload.CampaignID, rec.ContactID, sendErr.Error()); err != nil {
				log.Error(err, "failed to record send failure", "contact_id", rec.ContactID.String())
			}
			continue
		}

		marked, err := s.ledger.MarkSent(ctx, payload.CampaignID, rec.ContactID, messageID)
		if err != nil {
			log.Error(err, "failed to record send", "contact_id", rec.ContactID.String())
		} else if !marked {
			// Row left pending between the snapshot and now; another
			// delivery won the race.
			log.Warn("ledger row was no longer pending after send",
				"contact_id", rec.ContactID.String())
		}
		summary.Sent++
		if s.metrics != nil {
			s.metrics.ProviderSends.WithLabelValues("sent").Inc()
		}
	}

	if summary.Failed == 0 {
		if err := s.campaigns.UpdateStatus(ctx, payload.CampaignID, model.CampaignStatusDone); err != nil {
			log.Error(err, "failed to mark campaign done", "campaign_id", payload.CampaignID.String())
		}
	}

	log.Info("transmission complete",
		"campaign_id", payload.CampaignID.String(),
		"sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

func (s *Service) send(ctx context.Context, payload model.WorkflowPayload, rec model.Recipient) (string, error) {
	variables := resolveVariables(payload.TemplateVariables, rec.CustomFields)

	var messageID string
	call := func() error {
		var err error
		messageID, err = s.sender.SendTemplate(ctx, payload.Credentials, rec.Phone, payload.Template, variables)
		return err
	}

	if s.breaker != nil {
		if err := s.breaker.Execute(call); err != nil {
			return "", err
		}
		return messageID, nil
	}
	if err := call(); err != nil {
		return "", err
	}
	return messageID, nil
}

// resolveVariables overlays per-contact custom fields onto the
// campaign-level variables, so {{name}}-style personalization pulls
// from the contact when the campaign does not pin a value.
func resolveVariables(campaignVars model.JSONMap, contactFields model.JSONMap) model.JSONMap {
	if len(contactFields) == 0 {
		return campaignVars
	}
	merged := make(model.JSONMap, len(campaignVars)+len(contactFields))
	for k, v := range contactFields {
		merged[k] = v
	}
	for k, v := range campaignVars {
		merged[k] = v
	}
	return merged
}

func (s *Service) pendingContacts(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := s.ledger.ListByCampaign(ctx, campaignID, &model.LedgerFilters{Status: string(model.LedgerStatusPending)})
	if err != nil {
		return nil, err
	}
	pending := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		pending[row.ContactID] = true
	}
	return pending, nil
}
