// cmd/reminder-service/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"medreminder/internal/channels"
	"medreminder/internal/common/aws"
	"medreminder/internal/common/config"
	"medreminder/internal/common/database"
	httpclient "medreminder/internal/common/http"
	"medreminder/internal/common/logger"
	"medreminder/internal/common/observability"
	"medreminder/internal/history"
	"medreminder/internal/medication"
	"medreminder/internal/notify"
	"medreminder/internal/profile"
	"medreminder/internal/reminder"
	"medreminder/internal/scheduler"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting reminder service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (delivery history only) ---
	var sink reminder.HistoryRecorder
	if cfg.History.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		sink = history.NewSink(esClient.Client, cfg.History.Index, log)
	}

	// --- Init notification channel senders ---
	senders := buildSenders(ctx, cfg, log, zapLog)
	if len(senders) == 0 {
		zapLog.Warn("no notification channels enabled, reminders will fire without delivery")
	}

	// --- Wire the service ---
	feed := medication.NewRedisFeed(redis.Client, log)
	store := medication.NewPostgresStore(pg.DB, feed, log)
	resolver := profile.NewResolver(pg.DB, redis.Client, log)
	dispatcher := notify.NewDispatcher(config.GetDuration(cfg.Channels.SendTimeout), log, obs)

	svc := reminder.NewService(store, feed, resolver, dispatcher, senders, sink, log)
	sched := scheduler.New(scheduler.NewRealClock(), svc, log)
	svc.SetScheduler(sched)

	if err := svc.Start(ctx, cfg.Scheduler.ReplayOnStart); err != nil {
		zapLog.Fatal("reminder service start failed", zap.Error(err))
	}
	zapLog.Info("Reminder service started", zap.Int("pendingTimers", sched.PendingCount()))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on " + cfg.App.MetricsAddr)
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping timers...")
	cancel()
	sched.StopAll()

	zapLog.Info("Reminder service stopped gracefully")
}

// buildSenders constructs one sender per channel enabled in config.
func buildSenders(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) []channels.Sender {
	var senders []channels.Sender

	if cfg.Channels.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Channels.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		senders = append(senders, channels.NewEmailSender(sesClient, cfg.Channels.Email.FromEmail, log))
	}

	if cfg.Channels.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Channels.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		senders = append(senders, channels.NewSMSSender(snsClient, cfg.Channels.SMS.SenderID, log))
	}

	if cfg.Channels.Push.Enabled {
		client := httpclient.NewClient(config.GetDuration(cfg.Channels.SendTimeout))
		senders = append(senders, channels.NewPushSender(client, cfg.Channels.Push.Endpoint, cfg.Channels.Push.ServerKey, log))
	}

	if cfg.Channels.WhatsApp.Enabled {
		client := httpclient.NewClient(config.GetDuration(cfg.Channels.SendTimeout))
		senders = append(senders, channels.NewWhatsAppSender(
			client,
			cfg.Channels.WhatsApp.Endpoint,
			cfg.Channels.WhatsApp.PhoneNumberID,
			cfg.Channels.WhatsApp.AccessToken,
			log,
		))
	}

	for _, s := range senders {
		zapLog.Info("notification channel enabled", zap.String("channel", s.Name()))
	}
	return senders
}
