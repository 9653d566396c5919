package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"booking/backend/internal/auth"
	"booking/backend/internal/config"
	"booking/backend/internal/obs"
	"booking/backend/internal/queue"
	"booking/backend/internal/service/appointments"
	"booking/backend/internal/service/notifications"
	"booking/backend/internal/service/sessions"
	"booking/backend/internal/service/users"
	"booking/backend/internal/store/postgres"
	grpcTransport "booking/backend/internal/transport/grpc"
	"booking/backend/internal/transport/httpapi"
	"booking/backend/migrations"
)

const serviceName = "booking-server"

func main() {
	log := obs.NewLogger(serviceName, "info")

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	log = obs.NewLogger(serviceName, cfg.LogLevel)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("queue_backend", cfg.QueueBackend),
		slog.String("log_level", cfg.LogLevel),
	)

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
		if err := shutdownOTel(flushCtx); err != nil {
			log.Warn("otel shutdown failed", slog.Any("err", err))
		}
	}()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db, migrations.FS); err != nil {
			log.Error("migrations failed", slog.Any("err", err))
			os.Exit(1)
		}
		version, err := postgres.MigrationVersion(ctx, db)
		if err != nil {
			log.Warn("migration version lookup failed", slog.Any("err", err))
		}
		log.Info("migrations applied", slog.Int64("version", version))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", slog.Any("err", err))
		}
	}()

	jobs, closeJobs := newJobQueue(cfg, rdb, log)
	defer func() {
		if err := closeJobs(); err != nil {
			log.Warn("job queue close failed", slog.Any("err", err))
		}
	}()

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Error("token manager setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepo(db)
	apptSvc := appointments.NewService(postgres.NewAppointmentRepo(db), userRepo, jobs, log, appointments.Options{
		Locale:    appointments.ParseLocale(cfg.Locale),
		Location:  cfg.Location,
		WorkHours: appointments.WorkHours{Start: cfg.WorkHoursStart, End: cfg.WorkHoursEnd},
		PageSize:  cfg.PageSize,
	})
	pinger := postgres.NewPinger(db)

	api := httpapi.NewServer(httpapi.Deps{
		Appointments:   apptSvc,
		Users:          users.NewService(userRepo, log),
		Sessions:       sessions.NewService(userRepo, tokens, log),
		Notifications:  notifications.NewService(postgres.NewNotificationRepo(db), userRepo),
		Tokens:         tokens,
		Health:         pinger,
		BookingLimiter: httpapi.NewRedisRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "booking:rl:appointments", cfg.RateLimitFailOpen),
		AllowedOrigins: cfg.AllowedOrigins,
		FilesBaseURL:   cfg.FilesBaseURL,
		RequestTimeout: cfg.HTTPRequestTimeout,
		Logger:         log,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	hs := health.NewServer()
	grpcServer := grpcTransport.NewServer(cfg.GRPCRequestTimeout, hs)
	go grpcTransport.NewHealthReporter(hs, pinger, 10*time.Second, log).Run(ctx)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info("servers started", slog.String("http_addr", cfg.HTTPAddr), slog.String("grpc_addr", cfg.GRPCAddr()))

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, gogrpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", slog.Any("err", err))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}
	cancel()
	grpcTransport.Shutdown(log, grpcServer, cfg.ShutdownTimeout)

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// newJobQueue picks the producer side of the configured queue backend.
func newJobQueue(cfg config.Config, rdb *redis.Client, log *slog.Logger) (appointments.JobQueue, func() error) {
	if cfg.QueueBackend == "kafka" {
		q := queue.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		return q, q.Close
	}
	q := queue.NewRedisQueue(rdb, queue.RedisConfig{
		Key:         cfg.QueueRedisKey,
		MaxAttempts: cfg.QueueMaxAttempts,
		Logger:      log,
	})
	return q, func() error { return nil }
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
