package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"booking/backend/internal/config"
	"booking/backend/internal/domain"
	"booking/backend/internal/mail"
	"booking/backend/internal/obs"
	"booking/backend/internal/queue"
	"booking/backend/internal/service/appointments"
)

const serviceName = "mail-worker"

type consumer interface {
	Consume(ctx context.Context, h queue.Handler) error
}

func main() {
	log := obs.NewLogger(serviceName, "info")

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	log = obs.NewLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := obs.SetupOTel(ctx, obs.OTelConfig{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: serviceName,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("otel setup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(flushCtx)
	}()

	mailer := mail.NewSMTPMailer(mail.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, log)

	mux := queue.NewMux()
	mux.Handle(domain.JobKindCancellationMail,
		mail.NewCancellationHandler(mailer, appointments.ParseLocale(cfg.Locale), cfg.Location, log).Handle)

	var src consumer
	switch cfg.QueueBackend {
	case "kafka":
		c := queue.NewKafkaConsumer(queue.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.KafkaTopic,
			Logger:  log,
		})
		defer c.Close()
		src = c
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		src = queue.NewRedisQueue(rdb, queue.RedisConfig{
			Key:         cfg.QueueRedisKey,
			MaxAttempts: cfg.QueueMaxAttempts,
			Logger:      log,
		})
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.HTTPAddr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", slog.Any("err", err))
		}
	}()

	log.Info("worker started", slog.String("queue_backend", cfg.QueueBackend), slog.String("metrics_addr", cfg.HTTPAddr))

	err = src.Consume(ctx, mux.Dispatch)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("worker stopped")
}
