package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jwalitptl/campaign-api/internal/config"
	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
	apperrors "github.com/jwalitptl/campaign-api/pkg/errors"
	"github.com/jwalitptl/campaign-api/pkg/logger"
	"github.com/jwalitptl/campaign-api/pkg/messaging"
)

// transmitPath is the internal endpoint the direct (loopback) path
// posts the payload to.
const transmitPath = "/internal/transmit"

// Router decides how a WorkflowPayload reaches the transmission loop:
// a direct synchronous call when the service base URL is loopback (the
// durable queue cannot reach a loopback address), otherwise a hand-off
// to the durable queue.
type Router struct {
	campaigns repository.CampaignRepository
	queue     messaging.Queue
	client    *http.Client
	cfg       config.DispatchConfig
	logger    *logger.Logger
	now       func() time.Time
}

func NewRouter(
	campaigns repository.CampaignRepository,
	queue messaging.Queue,
	client *http.Client,
	cfg config.DispatchConfig,
	log *logger.Logger,
) *Router {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Router{
		campaigns: campaigns,
		queue:     queue,
		client:    client,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// StaleTrigger guards against ghost sends from scheduler jobs that
// could not be cancelled. For a schedule-originated trigger it
// re-checks the campaign's live status and, when the trigger recorded a
// schedule time, compares it against the campaign's current one within
// the configured tolerance. A mismatch means the user cancelled or
// rescheduled after the job was enqueued: the dispatch is ignored, not
// failed. A re-check that cannot be completed is an error, not a stale
// verdict: the scheduler retries on 5xx and the guard re-runs then.
func (r *Router) StaleTrigger(ctx context.Context, campaign *model.Campaign, trigger model.Trigger, scheduledAt *time.Time) (bool, string, error) {
	if trigger != model.TriggerSchedule {
		return false, "", nil
	}

	live, err := r.campaigns.Get(ctx, campaign.ID)
	if err != nil {
		r.logger.Error(err, "failed to re-check campaign for scheduler trigger",
			"campaign_id", campaign.ID.String())
		return false, "", fmt.Errorf("failed to re-check campaign state: %w", err)
	}

	if live.Status != model.CampaignStatusScheduled {
		return true, fmt.Sprintf("campaign is %s, not scheduled", live.Status), nil
	}

	if scheduledAt != nil {
		if live.ScheduledAt == nil {
			return true, "campaign no longer has a schedule", nil
		}
		diff := live.ScheduledAt.Sub(*scheduledAt)
		if diff < 0 {
			diff = -diff
		}
		if diff > r.cfg.ScheduleTolerance {
			return true, "campaign was rescheduled after this trigger was enqueued", nil
		}
	}

	return false, "", nil
}

// Route delivers the payload. It returns the dispatch status to report:
// "queued" on the asynchronous path; the direct path also reports
// "queued" to the caller since the HTTP contract is acceptance, not
// completion.
func (r *Router) Route(ctx context.Context, payload model.WorkflowPayload) error {
	if r.cfg.LocalTopology() {
		return r.transmitDirect(ctx, payload)
	}

	// Deployed topology: the queue credential is mandatory. Falling
	// back silently would turn a misconfiguration into lost sends.
	if r.cfg.QueueToken == "" {
		return apperrors.NewConfiguration("dispatch queue token is not configured", nil)
	}

	if err := r.queue.Enqueue(ctx, r.cfg.QueueName, payload); err != nil {
		return apperrors.NewRouting("failed to enqueue dispatch job", err)
	}
	return nil
}

func (r *Router) transmitDirect(ctx context.Context, payload model.WorkflowPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewRouting("failed to encode workflow payload", err)
	}

	endpoint := strings.TrimRight(r.cfg.ServiceBaseURL, "/") + transmitPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewRouting("failed to build transmit request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return apperrors.NewRouting("direct transmit call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.NewRouting(
			fmt.Sprintf("transmit endpoint returned %d", resp.StatusCode), nil)
	}
	return nil
}
