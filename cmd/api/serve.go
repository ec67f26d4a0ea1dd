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

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/onevoice/ivr/backend/internal/config"
	"github.com/onevoice/ivr/backend/internal/handler"
	"github.com/onevoice/ivr/backend/internal/handler/monitor"
	"github.com/onevoice/ivr/backend/internal/handler/voice"
	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/model/persona"
	"github.com/onevoice/ivr/backend/internal/service/ai"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/dialogue"
	"github.com/onevoice/ivr/backend/internal/service/metrics"
	"github.com/onevoice/ivr/backend/internal/service/outcome"
	"github.com/onevoice/ivr/backend/internal/service/session"
	sqlitestore "github.com/onevoice/ivr/backend/internal/storage/analytics"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run the webhook server",
		Example: "  onevoice serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.Component("server")

	backend, err := newBackend(ctx, cfg.AI)
	if err != nil {
		return err
	}

	var mirror session.Mirror
	if cfg.Session.RedisURL != "" {
		redisMirror, err := session.NewRedisMirror(ctx, cfg.Session.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, continuing without session mirror")
		} else {
			mirror = redisMirror
			logger.Info().Msg("session mirror connected")
		}
	}
	sessions := session.NewStore(cfg.Session.TTL, session.WithMirror(mirror))
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close session store")
		}
	}()

	m := metrics.New(sessions.Count)

	store, err := openCallLog(cfg.Analytics)
	if err != nil {
		return err
	}
	sink := analytics.NewSink(store, cfg.Analytics.QueueSize, analytics.WithDropHook(m.RecordAnalyticsDrop))
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close call log")
		}
	}()

	hub := monitor.NewHub(m)
	defer hub.Close()
	sink.AddObserver(hub)

	personaStore := persona.NewMemoryStore(persona.Seed())
	prompts := ai.NewPersonaPromptManager(personaStore, time.Now())
	tracker := outcome.NewTracker(sink, m)

	controller := dialogue.NewController(sessions, prompts, backend, tracker, sink, dialogue.Settings{
		HistoryLimit:   cfg.Dialogue.HistoryLimit,
		MenuMaxRetries: cfg.Dialogue.MenuMaxRetries,
		BackendTimeout: cfg.AI.Timeout,
	}, dialogue.WithMetrics(m))

	sweeper, err := session.NewSweeper(sessions, cfg.Session.SweepInterval, m.RecordSweep)
	if err != nil {
		return err
	}
	if cfg.Dialogue.PersonaRefreshDaily {
		if err := schedulePersonaRefresh(sweeper.Scheduler(), prompts); err != nil {
			return err
		}
	}
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			logger.Warn().Err(err).Msg("failed to stop scheduler")
		}
	}()

	var verifier *voice.SignatureVerifier
	if cfg.Twilio.ValidateSignatures() {
		verifier = voice.NewSignatureVerifier(cfg.Twilio.AuthToken, cfg.Server.PublicBaseURL)
	} else {
		logger.Warn().Msg("TWILIO_AUTH_TOKEN not set, webhook signatures are not verified")
	}

	router := handler.NewRouter(handler.Deps{
		Logger:   log.Logger,
		Dialogue: controller,
		Renderer: voice.Renderer{Voice: cfg.Twilio.Voice, Language: cfg.Twilio.Language},
		Verifier: verifier,
		Sessions: sessions,
		CallLog:  store,
		Tracker:  tracker,
		Personas: personaStore,
		Prompts:  prompts,
		Metrics:  m,
		Monitor:  hub,
	})

	return startServer(ctx, cfg.Server, router)
}

func newBackend(ctx context.Context, cfg config.AIConfig) (ai.Backend, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("language backend %q has no credentials configured", cfg.Provider)
	}
	logger := logging.Component("server")

	if cfg.Provider == "gemini" {
		backend, err := ai.NewGeminiBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("model", cfg.GeminiModel).Msg("gemini backend initialized")
		return backend, nil
	}

	backend, err := ai.NewService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("model", cfg.Model).Msg("ark backend initialized")
	return backend, nil
}

func openCallLog(cfg config.AnalyticsConfig) (analytics.Store, error) {
	if cfg.DBPath == "" || cfg.DBPath == ":memory:" {
		logger := logging.Component("server")
		logger.Warn().Msg("ANALYTICS_DB_PATH empty, call log kept in memory")
		return analytics.NewMemoryStore(), nil
	}
	store, err := sqlitestore.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	return store, nil
}

func schedulePersonaRefresh(scheduler gocron.Scheduler, prompts *ai.PersonaPromptManager) error {
	_, err := scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 5))),
		gocron.NewTask(func() {
			prompts.Refresh(time.Now())
			logger := logging.Component("persona")
			logger.Info().Msg("persona instructions refreshed")
		}),
		gocron.WithName("persona-refresh"),
	)
	if err != nil {
		return fmt.Errorf("failed to register persona refresh job: %w", err)
	}
	return nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger := logging.Component("server")
	logger.Info().Str("addr", serverCfg.Addr).Msg("onevoice listening")
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
