package dispatch

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/service/dispatch"
	"github.com/jwalitptl/campaign-api/pkg/errors"
	"github.com/jwalitptl/campaign-api/pkg/httputil"
)

type Handler struct {
	service *dispatch.Service
}

func NewHandler(service *dispatch.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/dispatch", h.Dispatch)
}

// Dispatch accepts a campaign send request. A 202 means the operation
// was accepted and its outcome recorded ("queued", "skipped" or
// "ignored"); it never means messages were delivered.
func (h *Handler) Dispatch(c *gin.Context) {
	var req model.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(err.Error(), err))
		return
	}
	if req.Trigger == "" {
		req.Trigger = model.TriggerManual
	}

	result, err := h.service.Dispatch(c.Request.Context(), &req)
	if err != nil {
		if unresolved := dispatch.UnresolvedRecipients(err); unresolved != nil {
			httputil.RespondWithErrorDetails(c, err, unresolved)
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithAccepted(c, result)
}
