package transmit

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/service/transmit"
	"github.com/jwalitptl/campaign-api/pkg/errors"
	"github.com/jwalitptl/campaign-api/pkg/httputil"
)

// Handler is the local-topology transmission endpoint. The dispatch
// router posts payloads here directly when the service base URL is
// loopback and the durable queue cannot call back in.
type Handler struct {
	service *transmit.Service
}

func NewHandler(service *transmit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/internal/transmit", h.Transmit)
}

func (h *Handler) Transmit(c *gin.Context) {
	var payload model.WorkflowPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(err.Error(), err))
		return
	}

	summary, err := h.service.Process(c.Request.Context(), payload)
	if err != nil {
		httputil.RespondWithError(c, errors.NewInternal(err))
		return
	}
	httputil.RespondWithSuccess(c, summary)
}
