package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/campaign-api/internal/config"
	"github.com/jwalitptl/campaign-api/internal/model"
	apperrors "github.com/jwalitptl/campaign-api/pkg/errors"
	"github.com/jwalitptl/campaign-api/pkg/logger"
)

func testDispatchConfig(baseURL string) config.DispatchConfig {
	return config.DispatchConfig{
		ServiceBaseURL:    baseURL,
		QueueToken:        "token",
		QueueName:         "dispatch:jobs",
		ScheduleTolerance: 60 * time.Second,
	}
}

func scheduledCampaign(at time.Time) *model.Campaign {
	return &model.Campaign{
		Base:        model.Base{ID: uuid.New()},
		Status:      model.CampaignStatusScheduled,
		ScheduledAt: &at,
	}
}

func TestStaleTriggerIgnoresManualTriggers(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	r := NewRouter(campaigns, &fakeQueue{}, nil, testDispatchConfig("https://api.example.com"), logger.NewLogger(nil))

	stale, _, err := r.StaleTrigger(context.Background(), &model.Campaign{}, model.TriggerManual, nil)
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestStaleTriggerScenarios(t *testing.T) {
	at := time.Now().Add(time.Hour).Truncate(time.Second)
	cfg := testDispatchConfig("https://api.example.com")
	log := logger.NewLogger(nil)

	t.Run("live scheduled campaign within tolerance is honored", func(t *testing.T) {
		c := scheduledCampaign(at)
		r := NewRouter(newFakeCampaignRepo(c), &fakeQueue{}, nil, cfg, log)

		trigAt := at.Add(30 * time.Second)
		stale, _, err := r.StaleTrigger(context.Background(), c, model.TriggerSchedule, &trigAt)
		require.NoError(t, err)
		assert.False(t, stale)
	})

	t.Run("cancelled campaign is stale", func(t *testing.T) {
		c := scheduledCampaign(at)
		c.Status = model.CampaignStatusCancelled
		r := NewRouter(newFakeCampaignRepo(c), &fakeQueue{}, nil, cfg, log)

		stale, reason, err := r.StaleTrigger(context.Background(), c, model.TriggerSchedule, &at)
		require.NoError(t, err)
		assert.True(t, stale)
		assert.Contains(t, reason, "cancelled")
	})

	t.Run("rescheduled campaign beyond tolerance is stale", func(t *testing.T) {
		c := scheduledCampaign(at)
		r := NewRouter(newFakeCampaignRepo(c), &fakeQueue{}, nil, cfg, log)

		trigAt := at.Add(-5 * time.Minute)
		stale, _, err := r.StaleTrigger(context.Background(), c, model.TriggerSchedule, &trigAt)
		require.NoError(t, err)
		assert.True(t, stale)
	})

	t.Run("schedule removed is stale", func(t *testing.T) {
		c := scheduledCampaign(at)
		c.ScheduledAt = nil
		r := NewRouter(newFakeCampaignRepo(c), &fakeQueue{}, nil, cfg, log)

		stale, _, err := r.StaleTrigger(context.Background(), c, model.TriggerSchedule, &at)
		require.NoError(t, err)
		assert.True(t, stale)
	})

	t.Run("unreadable campaign state surfaces an error", func(t *testing.T) {
		repo := newFakeCampaignRepo()
		repo.getErr = errors.New("connection reset")
		r := NewRouter(repo, &fakeQueue{}, nil, cfg, log)

		stale, _, err := r.StaleTrigger(context.Background(), scheduledCampaign(at), model.TriggerSchedule, &at)
		require.Error(t, err, "a failed re-check must not masquerade as a stale verdict")
		assert.False(t, stale)
	})
}

func TestRouteLocalTopologyPostsDirectly(t *testing.T) {
	var received model.WorkflowPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, transmitPath, req.URL.Path)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	queue := &fakeQueue{}
	r := NewRouter(newFakeCampaignRepo(), queue, srv.Client(), testDispatchConfig(srv.URL), logger.NewLogger(nil))

	payload := model.WorkflowPayload{CampaignID: uuid.New(), TraceID: "cmp_test"}
	require.NoError(t, r.Route(context.Background(), payload))

	assert.Equal(t, payload.CampaignID, received.CampaignID)
	assert.Empty(t, queue.payloads, "local topology must not touch the queue")
}

func TestRouteLocalTopologyNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRouter(newFakeCampaignRepo(), &fakeQueue{}, srv.Client(), testDispatchConfig(srv.URL), logger.NewLogger(nil))

	err := r.Route(context.Background(), model.WorkflowPayload{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrRouting, apperrors.CodeOf(err))
}

func TestRouteDeployedTopologyEnqueues(t *testing.T) {
	queue := &fakeQueue{}
	r := NewRouter(newFakeCampaignRepo(), queue, nil, testDispatchConfig("https://api.example.com"), logger.NewLogger(nil))

	require.NoError(t, r.Route(context.Background(), model.WorkflowPayload{TraceID: "cmp_test"}))
	assert.Equal(t, "dispatch:jobs", queue.queue)
	require.Len(t, queue.payloads, 1)
}

func TestRouteDeployedTopologyRequiresQueueToken(t *testing.T) {
	cfg := testDispatchConfig("https://api.example.com")
	cfg.QueueToken = ""
	queue := &fakeQueue{}
	r := NewRouter(newFakeCampaignRepo(), queue, nil, cfg, logger.NewLogger(nil))

	err := r.Route(context.Background(), model.WorkflowPayload{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConfiguration, apperrors.CodeOf(err))
	assert.Empty(t, queue.payloads, "misconfiguration must not silently enqueue")
}

func TestRouteEnqueueFailureIsRoutingError(t *testing.T) {
	queue := &fakeQueue{err: errors.New("redis down")}
	r := NewRouter(newFakeCampaignRepo(), queue, nil, testDispatchConfig("https://api.example.com"), logger.NewLogger(nil))

	err := r.Route(context.Background(), model.WorkflowPayload{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrRouting, apperrors.CodeOf(err))
}
