package pathstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/globepath/go/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the saved-path notifier
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "paths.saved",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher announces saved paths on a NATS subject
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// ConnectNATS dials the broker and returns a publisher on config.Subject
func ConnectNATS(config NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("globepath-relay"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSPublisher{nc: nc, subject: config.Subject}, nil
}

func (p *NATSPublisher) Name() string {
	return "nats"
}

// Publish sends a small notification; the points themselves stay on disk.
func (p *NATSPublisher) Publish(ctx context.Context, saved SavedPath) error {
	payload := events.PathSavedPayload{
		FileName:     saved.FileName,
		ConnectionID: saved.ConnectionID,
		Points:       saved.PointCount(),
		SavedAt:      saved.SavedAt,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal saved path notification: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Connected reports whether the broker link is up
func (p *NATSPublisher) Connected() bool {
	return p.nc.IsConnected()
}

// Close flushes pending notifications and closes the connection
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
		p.nc.Close()
	}
}
