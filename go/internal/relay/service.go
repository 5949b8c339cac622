package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/globepath/go/internal/pathstore"
	"github.com/rs/zerolog/log"
)

// Service is the relay: live connections with per-connection heartbeats,
// and a background writer for submitted paths.
type Service struct {
	config            Config
	clock             clockwork.Clock
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	store             *pathstore.FileStore
	writer            *pathstore.Writer
	metrics           *pathstore.CounterMetrics
	stats             *StatsService

	natsPublisher *pathstore.NATSPublisher
	archive       *pathstore.PostgresArchive

	startedAt time.Time
}

type serviceOptions struct {
	clock      clockwork.Clock
	publishers []pathstore.Publisher
	connConfig *ConnectionConfig
}

// ServiceOption customizes NewService
type ServiceOption func(*serviceOptions)

// WithClock replaces the real clock, mainly for tests.
func WithClock(clock clockwork.Clock) ServiceOption {
	return func(o *serviceOptions) {
		o.clock = clock
	}
}

// WithPublishers adds publishers notified after each saved path.
func WithPublishers(publishers ...pathstore.Publisher) ServiceOption {
	return func(o *serviceOptions) {
		o.publishers = append(o.publishers, publishers...)
	}
}

// WithConnectionConfig overrides the WebSocket settings. The heartbeat
// interval from Config still wins.
func WithConnectionConfig(cc ConnectionConfig) ServiceOption {
	return func(o *serviceOptions) {
		o.connConfig = &cc
	}
}

// NewService wires the relay. Optional NATS and Postgres publishers are
// connected here when configured.
func NewService(ctx context.Context, config Config, opts ...ServiceOption) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}

	options := serviceOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&options)
	}

	store, err := pathstore.NewFileStore(config.PathsDir)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:  config,
		clock:   options.clock,
		store:   store,
		metrics: pathstore.NewCounterMetrics(),

		startedAt: options.clock.Now(),
	}

	publishers := options.publishers
	if config.NATS.URL != "" {
		natsConfig := pathstore.DefaultNATSConfig()
		natsConfig.URL = config.NATS.URL
		if config.NATS.Subject != "" {
			natsConfig.Subject = config.NATS.Subject
		}
		s.natsPublisher, err = pathstore.ConnectNATS(natsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		publishers = append(publishers, s.natsPublisher)
	}
	if config.Database.Enabled {
		s.archive, err = pathstore.OpenPostgresArchive(ctx, config.Database.DSN())
		if err != nil {
			s.closeExternal()
			return nil, fmt.Errorf("failed to open path archive: %w", err)
		}
		publishers = append(publishers, s.archive)
	}

	s.writer = pathstore.NewWriter(store,
		pathstore.WriterConfig{Workers: config.Writer.Workers, QueueSize: config.Writer.QueueSize},
		pathstore.WithPublishers(publishers...),
		pathstore.WithMetrics(s.metrics),
		pathstore.WithClock(options.clock),
	)

	connConfig := DefaultConnectionConfig()
	if options.connConfig != nil {
		connConfig = *options.connConfig
	}
	connConfig.HeartbeatInterval = config.HeartbeatInterval()

	s.connectionManager = NewConnectionManager(connConfig, options.clock, s.writer)
	s.wsHandler = NewWebSocketHandler(s.connectionManager)
	s.stats = NewStatsService(s)

	return s, nil
}

// Start launches the background writer. It does not block. Cancelling ctx
// does not abort saves; Stop drains whatever is queued.
func (s *Service) Start(ctx context.Context) error {
	if err := s.writer.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start path writer: %w", err)
	}

	log.Info().
		Str("paths_dir", s.store.Dir()).
		Dur("heartbeat_interval", s.config.HeartbeatInterval()).
		Msg("relay service started")
	return nil
}

// Run starts the service and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	log.Info().Msg("relay service shutting down")
	return s.Stop()
}

// Stop closes live connections, drains the writer and releases broker and
// database handles.
func (s *Service) Stop() error {
	s.connectionManager.CloseAll()

	if err := s.writer.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop path writer")
	}

	s.closeExternal()

	log.Info().Msg("relay service stopped")
	return nil
}

func (s *Service) closeExternal() {
	if s.natsPublisher != nil {
		s.natsPublisher.Close()
	}
	if s.archive != nil {
		s.archive.Close()
	}
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)

	path, handler := NewStatsServiceHandler(s.stats)
	mux.Handle(path, handler)

	log.Info().Msg("relay routes registered")
}

// ConnectionManager exposes the live connection registry
func (s *Service) ConnectionManager() *ConnectionManager {
	return s.connectionManager
}

// GetStats returns statistics about the relay service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "globepath_relay"
	stats["status"] = "running"
	stats["uptime_sec"] = int64(s.clock.Since(s.startedAt).Seconds())

	m := s.metrics.Snapshot()
	stats["paths_saved"] = m.Saved
	stats["paths_failed"] = m.Failed
	stats["paths_dropped"] = m.Dropped
	stats["publish_failed"] = m.PublishFailed

	if s.natsPublisher != nil {
		stats["nats_connected"] = s.natsPublisher.Connected()
	}
	if s.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		stats["archive_reachable"] = s.archive.Ping(ctx) == nil
		cancel()
	}
	return stats
}
