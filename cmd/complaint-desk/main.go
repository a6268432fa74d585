// cmd/complaint-desk/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"complaint-desk/internal/api"
	commonaws "complaint-desk/internal/common/aws"
	"complaint-desk/internal/common/camunda"
	"complaint-desk/internal/common/config"
	"complaint-desk/internal/common/database"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/observability"
	"complaint-desk/internal/complaint"
	"complaint-desk/internal/fieldworker"
	"complaint-desk/internal/notification"
	"complaint-desk/internal/reporting"
	"complaint-desk/internal/search"
	"complaint-desk/internal/store"
	"complaint-desk/pkg/registry"

	ac "complaint-desk/internal/workers/complaint/assign-complaint"
	cc "complaint-desk/internal/workers/complaint/complete-complaint"
	lew "complaint-desk/internal/workers/complaint/list-eligible-workers"
	rfw "complaint-desk/internal/workers/field-worker/register-field-worker"
	cs "complaint-desk/internal/workers/reporting/complaint-summary"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting complaint-desk...",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Store.Driver),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability init failed, continuing without OpenTelemetry metrics", zap.Error(err))
	}

	var tracing *observability.Tracing
	if cfg.Tracing.Enabled {
		tracing, err = observability.NewTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			zapLog.Warn("tracing init failed, continuing without spans", zap.Error(err))
		} else {
			zapLog.Info("Tracing enabled", zap.String("endpoint", cfg.Tracing.JaegerEndpoint))
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	checks := map[string]api.CheckFunc{}

	// --- Complaint store ---
	var st store.Store
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemory(store.WithCategories(defaultCategories...))
		zapLog.Info("Using in-memory complaint store")
	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Database.Postgres.ApplySchema {
			if err := store.EnsureSchema(ctx, pg.DB); err != nil {
				zapLog.Fatal("schema migration failed", zap.Error(err))
			}
			zapLog.Info("Database schema applied")
		}
		st = store.NewPostgres(pg.DB)
		zapLog.Info("PostgreSQL connected successfully")
	}
	checks["store"] = st.Ping

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		rdb = database.NewRedis(cfg.Database.Redis)
		if err := rdb.Ping(ctx); err != nil {
			_ = rdb.Close()
			return err
		}
		return nil
	}, 5, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	checks["redis"] = rdb.Ping
	zapLog.Info("Redis connected successfully")

	// --- Domain services ---
	coordinator := complaint.NewCoordinator(complaint.Config{
		DefaultDeadline: time.Duration(cfg.Assignment.DefaultDeadlineDays) * 24 * time.Hour,
	}, st, log)

	registryPolicy := fieldworker.DeletePolicy(cfg.Registry.DeletePolicy)
	workers := fieldworker.NewRegistry(st, registryPolicy, log)

	reports := reporting.NewService(reporting.Config{
		CacheKey: cfg.Reporting.CacheKey,
		CacheTTL: config.GetDuration(cfg.Reporting.CacheTTL),
	}, st, rdb.Client, log)
	coordinator.Subscribe(reports)

	// --- Search ---
	var searcher api.Searcher
	if cfg.Search.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		index := search.NewIndex(es.Client, cfg.Search.Index, log)
		if err := index.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("search index setup failed", zap.Error(err))
		}
		coordinator.Subscribe(index)
		searcher = index
		checks["elasticsearch"] = es.Ping
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", index.Name()))
	}

	// --- Notifications ---
	dispatcherDone := make(chan struct{})
	var deadLetters api.DeadLetterReader
	sender, alerter, err := buildNotifiers(ctx, cfg)
	if err != nil {
		zapLog.Fatal("notification setup failed", zap.Error(err))
	}
	if sender == nil {
		close(dispatcherDone)
		zapLog.Info("Notifications disabled")
	} else {
		qc := cfg.Notifications.Queue
		queue := notification.NewQueue(rdb.Client, notification.Keys{
			Ready:      qc.Key,
			Retry:      qc.RetryKey,
			DeadLetter: qc.DeadLetterKey,
		})
		coordinator.Subscribe(notification.NewNotifier(queue))
		deadLetters = queue

		dispatcher := notification.NewDispatcher(queue, sender, alerter, notification.RetryPolicy{
			MaxAttempts: qc.MaxAttempts,
			BaseDelay:   config.GetDuration(qc.BaseDelay),
			MaxDelay:    config.GetDuration(qc.MaxDelay),
			PollTimeout: config.GetDuration(qc.PollTimeout),
		}, log)
		go func() {
			defer close(dispatcherDone)
			if err := dispatcher.Run(ctx); err != nil {
				zapLog.Error("notification dispatcher exited", zap.Error(err))
			}
		}()
		zapLog.Info("Notification dispatcher started", zap.String("channel", sender.Channel()))
	}

	// --- Zeebe workers ---
	var zeebeClient *camunda.Client
	var jobWorkers []worker.JobWorker
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebeClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks["zeebe"] = zeebeClient.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		jobWorkers = startWorkers(zeebeClient.GetClient(), cfg, coordinator, workers, reports, obs, log)
		zapLog.Info("Zeebe workers registered", zap.Int("count", len(jobWorkers)))
	}

	// --- Admin API ---
	server := api.NewServer(api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
	}, api.Deps{
		Coordinator: coordinator,
		Registry:    workers,
		Reporting:   reports,
		Search:      searcher,
		DeadLetters: deadLetters,
		Checks:      checks,
		Obs:         obs,
		Logger:      log,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		zapLog.Info("Admin API listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Admin API failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received, stopping...")
	case <-ctx.Done():
		zapLog.Info("Context cancelled, stopping...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping admin API", zap.Error(err))
	}

	for _, jw := range jobWorkers {
		jw.Close()
		jw.AwaitClose()
	}
	if zeebeClient != nil {
		if err := zeebeClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	stop()
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		zapLog.Warn("Notification dispatcher did not stop in time")
	}

	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing metrics", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing spans", zap.Error(err))
	}

	zapLog.Info("complaint-desk stopped gracefully")
}

// defaultCategories seed the in-memory store.
var defaultCategories = []string{"IT", "Plumbing", "Electrical", "Carpentry", "Housekeeping"}

// buildNotifiers returns a nil sender when notifications are disabled.
func buildNotifiers(ctx context.Context, cfg *config.Config) (notification.Sender, notification.Alerter, error) {
	nc := cfg.Notifications

	var sender notification.Sender
	switch nc.Channel {
	case config.ChannelNone:
		return nil, nil, nil
	case config.ChannelWhatsApp:
		sender = notification.NewWhatsAppSender(nc.WhatsApp.BaseURL, config.GetDuration(nc.WhatsApp.Timeout))
	}

	needAWS := nc.Channel == config.ChannelSMS || nc.Email.Enabled
	if !needAWS {
		return sender, nil, nil
	}

	awsCfg, err := commonaws.LoadConfig(ctx, nc.AWS.Region)
	if err != nil {
		return nil, nil, err
	}
	if nc.Channel == config.ChannelSMS {
		sender = notification.NewSMSSender(commonaws.NewSNSClient(awsCfg), nc.SMS.SenderID)
	}

	var alerter notification.Alerter
	if nc.Email.Enabled {
		alerter = notification.NewAlertMailer(commonaws.NewSESClient(awsCfg), nc.Email.FromEmail, nc.Email.SupervisorMail)
	}
	return sender, alerter, nil
}

func startWorkers(
	client zbc.Client,
	cfg *config.Config,
	coordinator *complaint.Coordinator,
	workers *fieldworker.Registry,
	reports *reporting.Service,
	obs *observability.Observability,
	log logger.Logger,
) []worker.JobWorker {
	handlers := map[string]camunda.JobHandler{
		ac.TaskType: ac.NewHandler(
			ac.LoadConfig(config.GetWorkerConfig(cfg, ac.TaskType)), coordinator, log),
		cc.TaskType: cc.NewHandler(
			cc.LoadConfig(config.GetWorkerConfig(cfg, cc.TaskType)), coordinator, log),
		lew.TaskType: lew.NewHandler(
			lew.LoadConfig(config.GetWorkerConfig(cfg, lew.TaskType)), coordinator, log),
		rfw.TaskType: rfw.NewHandler(
			rfw.LoadConfig(config.GetWorkerConfig(cfg, rfw.TaskType)), workers, log),
		cs.TaskType: cs.NewHandler(
			cs.LoadConfig(config.GetWorkerConfig(cfg, cs.TaskType)), reports, log),
	}

	catalog := registry.Default()
	var started []worker.JobWorker
	for _, activity := range catalog.Activities {
		handler, ok := handlers[activity.TaskType]
		if !ok {
			log.Warn("no handler for catalogued task type", map[string]interface{}{"taskType": activity.TaskType})
			continue
		}
		jw := camunda.StartWorker(client, activity.TaskType,
			config.GetWorkerConfig(cfg, activity.TaskType),
			camunda.Instrument(activity.TaskType, handler, obs), log)
		if jw != nil {
			started = append(started, jw)
		}
	}
	return started
}
