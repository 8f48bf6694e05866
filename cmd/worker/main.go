package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/campaign-api/internal/config"
	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository/postgres"
	transmitService "github.com/jwalitptl/campaign-api/internal/service/transmit"
	"github.com/jwalitptl/campaign-api/internal/whatsapp"
	"github.com/jwalitptl/campaign-api/pkg/circuitbreaker"
	"github.com/jwalitptl/campaign-api/pkg/logger"
	"github.com/jwalitptl/campaign-api/pkg/messaging"
	"github.com/jwalitptl/campaign-api/pkg/messaging/redis"
	"github.com/jwalitptl/campaign-api/pkg/metrics"
)

// WorkerOptions are operational knobs specific to the transmission
// worker, read from the environment so deployments can tune them
// without touching the shared config file.
type WorkerOptions struct {
	QueueName   string        `envconfig:"WORKER_QUEUE_NAME" default:""`
	PollTimeout time.Duration `envconfig:"WORKER_POLL_TIMEOUT" default:"5s"`
	MetricsAddr string        `envconfig:"WORKER_METRICS_ADDR" default:":8081"`
}

func setupMetricsServer(addr string, queue messaging.Queue, queueName string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := queue.Depth(r.Context(), queueName); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error(err, "metrics server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var opts WorkerOptions
	if err := envconfig.Process("", &opts); err != nil {
		log.Fatal().Err(err).Msg("failed to read worker options")
	}
	if opts.QueueName == "" {
		opts.QueueName = cfg.Dispatch.QueueName
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("campaign_api", "worker")

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

	ledgerRepo := postgres.NewLedgerRepository(db)
	campaignRepo := postgres.NewCampaignRepository(db)

	providerClient := whatsapp.NewClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.APIVersion, nil)
	providerBreaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "whatsapp-provider",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
	})
	transmitSvc := transmitService.NewService(ledgerRepo, campaignRepo, providerClient, providerBreaker, appMetrics, appLogger)

	setupMetricsServer(opts.MetricsAddr, queue, opts.QueueName, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down worker")
		cancel()
	}()

	appLogger.Info("transmission worker started", "queue", opts.QueueName)
	run(ctx, queue, opts, transmitSvc, appMetrics, appLogger)
}

func run(ctx context.Context, queue messaging.Queue, opts WorkerOptions, svc *transmitService.Service, m *metrics.Metrics, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return
		default:
		}

		body, err := queue.Dequeue(ctx, opts.QueueName, opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error(err, "failed to dequeue job")
			time.Sleep(time.Second)
			continue
		}
		if body == nil {
			// Poll timeout, nothing queued.
			continue
		}

		if depth, err := queue.Depth(ctx, opts.QueueName); err == nil {
			m.QueueDepth.Set(float64(depth))
		}

		var payload model.WorkflowPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			m.JobsFailed.Inc()
			log.Error(err, "discarding malformed job")
			continue
		}

		started := time.Now()
		summary, err := svc.Process(ctx, payload)
		m.JobProcessingLag.Observe(time.Since(started).Seconds())
		if err != nil {
			m.JobsFailed.Inc()
			log.Error(err, "job processing failed",
				"campaign_id", payload.CampaignID.String(),
				"trace_id", payload.TraceID)
			continue
		}

		m.JobsProcessed.Inc()
		log.Info("job processed",
			"campaign_id", payload.CampaignID.String(),
			"trace_id", payload.TraceID,
			"sent", summary.Sent,
			"failed", summary.Failed,
			"skipped", summary.Skipped)
	}
}
