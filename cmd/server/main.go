// evmarket - EV marketplace ad placement and subscription service
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"evmarket/internal/config"
	"evmarket/internal/domain"
	"evmarket/internal/domain/notifications"
	"evmarket/internal/domain/payments"
	"evmarket/internal/events"
	"evmarket/internal/metrics"
	"evmarket/internal/repository/redisstore"
	"evmarket/internal/repository/sqlite"
	"evmarket/internal/server"
	"evmarket/internal/service"
	"evmarket/internal/storage"
	"evmarket/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.json", "path to a JSON or YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Debug)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.New(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	log.Info("database initialized", "path", cfg.GetDatabasePath())

	repos := sqlite.NewRepositories(db)

	if cfg.Redis.URL != "" {
		client, err := redisstore.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		repos.PaymentGuard = redisstore.NewPaymentGuard(client, time.Duration(cfg.Redis.ClaimTTLSeconds)*time.Second)
		log.Info("payment claims held in redis")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	workflow := metrics.NewWorkflow(registry)

	var publisher events.Publisher = events.NewLoggingPublisher(logger.Module(log, "events"))
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Topics)
		if err != nil {
			return err
		}
		defer kafka.Close()
		retrying := events.NewRetryingPublisher(kafka, logger.Module(log, "events"), uint64(cfg.Kafka.MaxRetries), 10*time.Second)
		async := events.NewAsyncPublisher(retrying, logger.Module(log, "events"), 1024, 15*time.Second)
		defer async.Close()
		publisher = async
		log.Info("publishing events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	var provider payments.Provider
	switch cfg.Payments.Provider {
	case "stripe":
		provider = payments.NewStripeProvider(cfg.Payments.StripeSecretKey, logger.Module(log, "payments"))
	default:
		log.Warn("using mock payment provider")
		provider = payments.NewMockProvider()
	}

	var creatives server.CreativeUploader
	if cfg.S3.Bucket != "" {
		store, err := storage.NewCreativeStore(storage.Config{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.S3.Bucket,
			PublicBaseURL: cfg.S3.PublicBaseURL,
			UsePathStyle:  cfg.S3.UsePathStyle,
			MaxBytes:      cfg.S3.MaxBytes,
		})
		if err != nil {
			return err
		}
		creatives = store
	}

	opts := service.Options{
		Logger:   log,
		Metrics:  workflow,
		Events:   publisher,
		Notifier: notifications.NewEmailNotifier(notifications.NewLogEmailProvider(logger.Module(log, "email")), cfg.Notifications.OperatorEmail),
	}
	pricing := service.Pricing{
		Currency: cfg.Payments.Currency,
		Plans: map[domain.PlanTier]int64{
			domain.PlanMonthly:   cfg.Plans.Monthly,
			domain.PlanQuarterly: cfg.Plans.Quarterly,
			domain.PlanYearly:    cfg.Plans.Yearly,
		},
		Pages: cfg.Placements.Prices,
	}

	accounts := service.NewAccountService(repos, opts)
	if _, err := accounts.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Warn("could not create default admin", "error", err)
	}

	submission := service.NewSubmissionService(repos, opts)
	srv := server.New(server.Deps{
		Config: cfg,
		Services: server.Services{
			Accounts:     accounts,
			Renewal:      service.NewRenewalEngine(repos, provider, submission, pricing, opts),
			Submission:   submission,
			Placement:    service.NewPlacementService(repos, provider, pricing, opts),
			Review:       service.NewReviewService(repos, cfg.Publish.MaxDays, opts),
			Cancellation: service.NewCancellationService(repos, opts),
			Visibility:   service.NewVisibilityService(repos, opts),
			Reconciler:   service.NewReconciler(repos, opts),
			History:      service.NewHistoryService(repos),
		},
		Creatives: creatives,
		Metrics:   workflow,
		Gatherer:  registry,
		Logger:    log,
	})

	return srv.Run(ctx)
}
