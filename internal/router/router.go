package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	promhandler "github.com/jwalitptl/campaign-api/internal/handler/prometheus"
	"github.com/jwalitptl/campaign-api/internal/middleware"
)

// Handler registers its routes on a router group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	promH     *promhandler.Handler
	healthH   Handler
	campaignH Handler
	dispatchH Handler
	transmitH Handler
	config    Config
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
	// ExposeTransmit mounts the internal transmit endpoint. Only the
	// loopback topology sets it; in a deployed topology the worker
	// drives transmission from the queue and the endpoint must not
	// exist on the network.
	ExposeTransmit bool
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH Handler,
	campaignH Handler,
	dispatchH Handler,
	transmitH Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:    engine,
		auth:      auth,
		promH:     promhandler.New(),
		healthH:   healthH,
		campaignH: campaignH,
		dispatchH: dispatchH,
		transmitH: transmitH,
		config:    config,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.promH.Middleware(),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(config.RateLimit, config.RateBurst)
		engine.Use(rateLimiter.Middleware())
	}

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.promH.Handler())

	api := r.engine.Group("/api/v1")
	r.healthH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.campaignH.RegisterRoutes(protected)
	r.dispatchH.RegisterRoutes(protected)

	// The transmit endpoint stays off the public API group and is only
	// mounted at all in the loopback topology, where the dispatch
	// router's direct path is its single caller.
	if r.config.ExposeTransmit {
		r.transmitH.RegisterRoutes(r.engine.Group(""))
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
