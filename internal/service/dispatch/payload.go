package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
)

// NewTraceID generates the correlation id threaded through the queue
// hand-off: cmp_<campaignId>_<timestamp>_<random>.
func NewTraceID(campaignID uuid.UUID) string {
	random := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("cmp_%s_%d_%s", campaignID, time.Now().UnixMilli(), random)
}

// BuildPayload assembles the immutable unit of work handed to the
// transmission loop. The credentials embedded here are always the fully
// resolved ones, never the raw (possibly masked) caller-supplied value.
func BuildPayload(
	campaignID uuid.UUID,
	traceID string,
	admitted []model.Recipient,
	variables model.JSONMap,
	snapshot model.TemplateSnapshot,
	creds model.ProviderCredentials,
) model.WorkflowPayload {
	return model.WorkflowPayload{
		CampaignID:        campaignID,
		TraceID:           traceID,
		Contacts:          admitted,
		TemplateVariables: variables,
		Template:          snapshot,
		Credentials:       creds,
		EnqueuedAt:        time.Now().UTC(),
	}
}
