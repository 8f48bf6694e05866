package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/campaign-api/internal/config"
	campaignHandler "github.com/jwalitptl/campaign-api/internal/handler/campaign"
	dispatchHandler "github.com/jwalitptl/campaign-api/internal/handler/dispatch"
	"github.com/jwalitptl/campaign-api/internal/handler/health"
	transmitHandler "github.com/jwalitptl/campaign-api/internal/handler/transmit"
	"github.com/jwalitptl/campaign-api/internal/middleware"
	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository/postgres"
	"github.com/jwalitptl/campaign-api/internal/router"
	campaignService "github.com/jwalitptl/campaign-api/internal/service/campaign"
	dispatchService "github.com/jwalitptl/campaign-api/internal/service/dispatch"
	templateService "github.com/jwalitptl/campaign-api/internal/service/template"
	transmitService "github.com/jwalitptl/campaign-api/internal/service/transmit"
	"github.com/jwalitptl/campaign-api/internal/whatsapp"
	"github.com/jwalitptl/campaign-api/pkg/circuitbreaker"
	"github.com/jwalitptl/campaign-api/pkg/logger"
	"github.com/jwalitptl/campaign-api/pkg/messaging/redis"
	"github.com/jwalitptl/campaign-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("campaign_api", "dispatch")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	zl := log.Logger
	queue, err := redis.NewRedisQueue(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer queue.Close()

	// Repositories
	campaignRepo := postgres.NewCampaignRepository(db)
	templateRepo := postgres.NewTemplateRepository(db)
	contactRepo := postgres.NewContactRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	// Services
	templateSvc := templateService.NewService(templateRepo)
	campaignSvc := campaignService.NewService(campaignRepo, ledgerRepo)

	identityResolver := dispatchService.NewIdentityResolver(contactRepo)
	freezer := dispatchService.NewSnapshotFreezer(campaignRepo, templateSvc, appLogger)
	dispatchRouter := dispatchService.NewRouter(campaignRepo, queue, nil, cfg.Dispatch, appLogger)
	credResolver := dispatchService.NewCredentialResolver(settingsRepo, model.ProviderCredentials{
		PhoneNumberID:     cfg.WhatsApp.PhoneNumberID,
		AccessToken:       cfg.WhatsApp.AccessToken,
		BusinessAccountID: cfg.WhatsApp.BusinessAccountID,
	})
	dispatchSvc := dispatchService.NewService(
		campaignRepo, templateSvc, ledgerRepo,
		identityResolver, freezer, dispatchRouter, credResolver,
		appMetrics, appLogger,
	)

	providerClient := whatsapp.NewClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.APIVersion, nil)
	providerBreaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "whatsapp-provider",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
	})
	transmitSvc := transmitService.NewService(ledgerRepo, campaignRepo, providerClient, providerBreaker, appMetrics, appLogger)

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT)
	healthH := health.NewHandler(db)
	campaignH := campaignHandler.NewHandler(campaignSvc)
	dispatchH := dispatchHandler.NewHandler(dispatchSvc)
	transmitH := transmitHandler.NewHandler(transmitSvc)

	r := router.NewRouter(authMiddleware, healthH, campaignH, dispatchH, transmitH, router.Config{
		RateLimit:      rate.Limit(50),
		RateBurst:      100,
		ExposeTransmit: cfg.Dispatch.LocalTopology(),
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("campaign API listening")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
