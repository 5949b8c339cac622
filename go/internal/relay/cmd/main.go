package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/globepath/go/internal/relay"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := relay.LoadConfig(getEnv("RELAY_CONFIG", "relay.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load relay config")
	}
	zerolog.SetGlobalLevel(config.Level())

	log.Info().
		Str("port", config.Port).
		Str("static_dir", config.StaticDir).
		Str("paths_dir", config.PathsDir).
		Bool("nats_enabled", config.NATS.URL != "").
		Bool("archive_enabled", config.Database.Enabled).
		Msg("starting globepath relay")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayService, err := relay.NewService(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create relay service")
	}

	server := relay.NewHTTPServer(config, relay.NewHTTPHandler(relayService))

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := relayService.Run(ctx); err != nil {
			log.Error().Err(err).Msg("relay service failed")
		}
	}()

	// Start HTTP server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Cancel service context to close connections and drain the writer
	cancel()

	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("relay service did not stop before shutdown timeout")
	}

	log.Info().Msg("globepath relay shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
