// Package main provides the astrachat HTTP server entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/astrachat/astrachat/internal/config"
	"github.com/astrachat/astrachat/internal/gateway"
	"github.com/astrachat/astrachat/internal/intent"
	"github.com/astrachat/astrachat/internal/orchestrator"
	"github.com/astrachat/astrachat/internal/session"
	"github.com/astrachat/astrachat/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "astrachat.yaml", "Path to config file")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	// Optional .env for local development; env vars win over the file.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	if *port != 0 {
		cfg.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	sessions := session.NewStore(session.Options{
		SessionTTL: cfg.SessionTTL,
		ContextTTL: cfg.ContextTTL,
		MaxTurns:   cfg.MaxTurns,
	})
	sessions.StartSweeper(ctx, cfg.SweepInterval)

	var model *intent.ModelResolver
	if cfg.ModelEnabled() {
		model = intent.NewModelResolver(cfg.ModelEndpoint, cfg.ModelAPIKey, cfg.Model, cfg.ModelTimeout)
		log.Info().Str("model", cfg.Model).Msg("Model-backed intent resolver enabled")
	} else {
		log.Info().Msg("Model-backed intent resolver disabled, rules only")
	}

	resolver := intent.NewResolver(sessions, model)
	answers := orchestrator.New(cfg)
	svc := gateway.NewService(Version, cfg, sessions, resolver, answers)

	// Exit on config change; the supervisor restarts us with fresh settings.
	cfgWatcher, err := watcher.New(*configPath, func() {
		log.Info().Str("path", *configPath).Msg("Config changed, restarting")
		cancel()
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		if err := cfgWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		}
		defer cfgWatcher.Stop()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("version", Version).Msg("astrachat listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Stopped")
}
