package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/globepath/go/internal/events"
	"github.com/mcdev12/globepath/go/internal/models"
	"github.com/mcdev12/globepath/go/internal/pathstore"
	"github.com/rs/zerolog/log"
)

// ErrUnknownEvent is logged for frames whose event name the relay ignores.
var ErrUnknownEvent = errors.New("unknown event")

// PathSink accepts submitted paths for persistence. Submit must not block.
type PathSink interface {
	Submit(sub pathstore.Submission) error
}

// ConnectionManager manages live WebSocket connections
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	config     ConnectionConfig
	clock      clockwork.Clock
	heartbeats *HeartbeatEmitter
	sink       PathSink
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID         string
	RemoteAddr string
	Conn       *websocket.Conn
	Manager    *ConnectionManager

	// done is closed once, when the connection is unregistered.
	done chan struct{}

	// beat is signalled by the heartbeat ticker; capacity 1 so a slow
	// writer skips ticks instead of queueing them.
	beat chan struct{}

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout      time.Duration
	ReadTimeout       time.Duration
	HeartbeatInterval time.Duration
	MaxMessageSize    int64
	ReadBufferSize    int
	WriteBufferSize   int
	CheckOrigin       func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		HeartbeatInterval: time.Second,
		MaxMessageSize:    1 << 20, // paths can hold many points
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock, sink PathSink) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:     config,
		clock:      clock,
		heartbeats: NewHeartbeatEmitter(clock, config.HeartbeatInterval),
		sink:       sink,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		RemoteAddr:  r.RemoteAddr,
		Conn:        conn,
		Manager:     cm,
		done:        make(chan struct{}),
		beat:        make(chan struct{}, 1),
		ConnectedAt: cm.clock.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", connection.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

// registerConnection adds a connection to the manager and arms its
// heartbeat. Both happen under the lock so a racing unregister always sees
// a heartbeat to stop.
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn
	cm.heartbeats.Start(conn.ID, conn.signalBeat)

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and stops its heartbeat. It is
// safe to call from both pumps.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.connections[conn.ID]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn.ID)
	close(conn.done)
	cm.mu.Unlock()

	cm.heartbeats.Stop(conn.ID)

	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", cm.clock.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

// Connection returns a live connection by ID
func (cm *ConnectionManager) Connection(id string) (*Connection, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conn, ok := cm.connections[id]
	return conn, ok
}

// CloseAll drops every connection, used on shutdown
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
	cm.heartbeats.StopAll()
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	total := len(cm.connections)
	cm.mu.RUnlock()

	return map[string]interface{}{
		"total_connections": total,
		"active_heartbeats": cm.heartbeats.Active(),
	}
}

// signalBeat runs on the heartbeat goroutine.
func (c *Connection) signalBeat() {
	select {
	case c.beat <- struct{}{}:
	default:
		log.Debug().Str("connection_id", c.ID).Msg("previous heartbeat still pending, skipping tick")
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	cfg := c.Manager.config
	defer func() {
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.beat:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, events.PingFrame()); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send heartbeat")
				return
			}
			// Transport-level ping keeps the read deadline alive; clients
			// answer it with a pong automatically.
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	cfg := c.Manager.config
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if err := c.handleClientMessage(message); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Msg("dropped client message")
		}
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the client
func (c *Connection) handleClientMessage(message []byte) error {
	env, err := events.Decode(message)
	if err != nil {
		return err
	}

	switch env.Event {
	case models.EventSavePath:
		return c.handleSavePath(env.Data)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func (c *Connection) handleSavePath(data json.RawMessage) error {
	receivedAt := c.Manager.clock.Now()

	// Elements are stored as sent; only the array shape is required.
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("save-path payload is not a JSON array: %w", err)
	}

	sub := pathstore.Submission{
		ConnectionID: c.ID,
		ReceivedAt:   receivedAt,
		Raw:          data,
	}
	var path models.Path
	if err := json.Unmarshal(data, &path); err == nil {
		sub.Path = path
	}
	if err := c.Manager.sink.Submit(sub); err != nil {
		// One-way submission: the client is never told.
		log.Error().
			Err(err).
			Str("connection_id", c.ID).
			Int("points", len(items)).
			Msg("failed to queue path for saving")
		return nil
	}

	log.Debug().
		Str("connection_id", c.ID).
		Int("points", len(items)).
		Msg("received save-path")
	return nil
}
