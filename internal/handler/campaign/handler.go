package campaign

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/service/campaign"
	"github.com/jwalitptl/campaign-api/pkg/errors"
	"github.com/jwalitptl/campaign-api/pkg/httputil"
)

type Handler struct {
	service campaign.CampaignService
}

func NewHandler(service campaign.CampaignService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	campaigns := r.Group("/campaigns")
	{
		campaigns.POST("", h.CreateCampaign)
		campaigns.GET("", h.ListCampaigns)
		campaigns.GET("/:id", h.GetCampaign)
		campaigns.PUT("/:id", h.UpdateCampaign)
		campaigns.DELETE("/:id", h.CancelCampaign)
		campaigns.GET("/:id/contacts", h.ListLedger)
		campaigns.GET("/:id/stats", h.GetStats)
	}
}

func (h *Handler) CreateCampaign(c *gin.Context) {
	var req model.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(err.Error(), err))
		return
	}

	created, err := h.service.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, created)
}

func (h *Handler) GetCampaign(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	campaign, err := h.service.GetCampaign(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, campaign)
}

func (h *Handler) UpdateCampaign(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(err.Error(), err))
		return
	}

	updated, err := h.service.UpdateCampaign(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}

func (h *Handler) CancelCampaign(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.CancelCampaign(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"status": string(model.CampaignStatusCancelled)})
}

func (h *Handler) ListCampaigns(c *gin.Context) {
	filters := &model.CampaignFilters{
		OrgID:  c.Query("org_id"),
		Status: c.Query("status"),
	}
	campaigns, err := h.service.ListCampaigns(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, campaigns)
}

// ListLedger exposes the per-contact dispatch ledger, including skip
// codes and reasons, so operators can see why a contact was not sent.
func (h *Handler) ListLedger(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	rows, err := h.service.ListLedger(c.Request.Context(), id, &model.LedgerFilters{
		Status: c.Query("status"),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rows)
}

func (h *Handler) GetStats(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.NewBadRequest("invalid campaign id", err)
	}
	return id, nil
}
