// Package main provides the entrypoint for the botsentinel monitor.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/botsentinel/botsentinel/internal/api"
	"github.com/botsentinel/botsentinel/internal/auth"
	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/check"
	"github.com/botsentinel/botsentinel/internal/config"
	"github.com/botsentinel/botsentinel/internal/confirm"
	"github.com/botsentinel/botsentinel/internal/database"
	"github.com/botsentinel/botsentinel/internal/failover"
	"github.com/botsentinel/botsentinel/internal/flags"
	"github.com/botsentinel/botsentinel/internal/lock"
	"github.com/botsentinel/botsentinel/internal/notify"
	"github.com/botsentinel/botsentinel/internal/scheduler"
	"github.com/botsentinel/botsentinel/internal/telegram"
	"github.com/botsentinel/botsentinel/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "botsentinel"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting botsentinel monitor")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Storage and exclusivity lock
	var (
		repo     bot.Repository
		flagRepo flags.Repository
		locker   lock.Locker = lock.Nop{}
	)
	switch cfg.Storage {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")

		repo = bot.NewPostgresRepository(pool)
		flagRepo = flags.NewPostgresRepository(pool)
		if cfg.LockEnabled {
			locker = lock.NewAdvisoryLock(pool, cfg.LockName)
		}
	case "memory":
		repo = bot.NewInMemoryRepository()
		flagRepo = flags.NewInMemoryRepository()
		if cfg.LockEnabled {
			locker = lock.NewFileLock(cfg.LockFilePath)
		}
	}

	acquired, err := locker.TryAcquire(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to acquire sweep lock")
	}
	if !acquired {
		// Another instance is sweeping. Stay up as a warm spare so a restart
		// of the holder hands the lock over without operator action.
		log.Warn().Msg("sweep lock held elsewhere, idling until shutdown")
		<-ctx.Done()
		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := locker.Release(releaseCtx); err != nil {
			log.Error().Err(err).Msg("failed to release sweep lock")
		}
	}()

	// Runtime flags
	flagService := flags.NewService(flags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	// Alert channels
	notifiers := notify.Multi{notify.LogNotifier{Logger: log}}
	if cfg.TwilioConfigured() {
		notifiers = append(notifiers, notify.NewTwilioWhatsApp(notify.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
			To:         cfg.TwilioTo,
			Logger:     log,
		}))
		log.Info().Msg("whatsapp alerts enabled")
	}
	if cfg.PubSubConfigured() {
		psNotifier, err := notify.NewPubSubNotifier(ctx, notify.PubSubConfig{
			ProjectID: cfg.PubSubProjectID,
			TopicID:   cfg.PubSubTopicID,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub notifier")
		}
		defer func() {
			if err := psNotifier.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub notifier")
			}
		}()
		notifiers = append(notifiers, psNotifier)
		log.Info().Str("topic", cfg.PubSubTopicID).Msg("pubsub alerts enabled")
	}

	// Check pipeline
	tg := telegram.NewClient(telegram.ClientConfig{
		Timeout: cfg.CheckTimeout,
		Logger:  log,
	})
	runner := check.NewRunner(
		check.NewCredentialChecker(tg),
		check.NewReachabilityChecker(check.ReachabilityConfig{Timeout: cfg.CheckTimeout}),
		check.NewWebhookChecker(tg),
		check.NewProbeChecker(tg, log),
		cfg.Strategy,
	)
	confirmer := confirm.New(confirm.Config{
		BaseDelay:   cfg.ConfirmBaseDelay,
		Jitter:      cfg.ConfirmJitter,
		ExtraRounds: cfg.ConfirmExtraRounds,
	}, log)

	engine := failover.New(repo, notifiers, flagService, failover.Config{
		Threshold:            cfg.FailureThreshold,
		AlertCooldown:        cfg.AlertCooldown,
		GracePeriod:          cfg.GracePeriod,
		DemoteWithoutStandby: cfg.DemoteWithoutStandby,
	}, log)

	// Bring the pool up to strength before the first sweep.
	if err := engine.EnsureActive(ctx, cfg.MinActive); err != nil {
		log.Error().Err(err).Msg("startup promotion failed")
	}

	sweeper, err := scheduler.New(repo, runner, confirmer, engine, flagService, scheduler.Config{
		Interval:              cfg.SweepInterval,
		Concurrency:           cfg.SweepConcurrency,
		ProbeChatID:           cfg.ProbeChatID,
		WebhookErrorRecency:   cfg.WebhookErrorRecency,
		WebhookPendingCeiling: cfg.WebhookPendingCeiling,
	}, log, tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sweeper")
	}

	notifiers.Notify(ctx, fmt.Sprintf("botsentinel %s started, sweeping every %s", Version, cfg.SweepInterval))

	go sweeper.Run(ctx)

	// Status API
	jwtSigningKey := cfg.JWTSigningKey
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Repository: repo,
		Sweeper:    sweeper,
		Engine:     engine,
		JWTService: auth.NewJWTService(jwtSigningKey, "botsentinel"),
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("status server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("monitor stopped")
}
