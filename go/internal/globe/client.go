package globe

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/globepath/go/internal/events"
	"github.com/mcdev12/globepath/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ClientConfig holds settings for the live connection to the relay
type ClientConfig struct {
	ServerURL         string
	HeartbeatInterval time.Duration
	WatchdogTimeout   time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	SendQueueSize     int
}

// DefaultClientConfig returns the settings for a relay on localhost:8000
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:         "ws://127.0.0.1:8000/ws",
		HeartbeatInterval: time.Second,
		WatchdogTimeout:   2 * time.Second,
		DialTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		SendQueueSize:     16,
	}
}

// Validate checks the server URL and the watchdog window
func (c ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server url must use ws or wss, got %q", u.Scheme)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send queue size must be positive, got %d", c.SendQueueSize)
	}
	return c.TrackerConfig().Validate()
}

// TrackerConfig derives the tracker settings
func (c ClientConfig) TrackerConfig() TrackerConfig {
	return TrackerConfig{
		HeartbeatInterval: c.HeartbeatInterval,
		Timeout:           c.WatchdogTimeout,
	}
}

// Client is the globe side of the live connection. It reports connection
// events to a Tracker and never reconnects on its own.
type Client struct {
	config  ClientConfig
	tracker *Tracker
	dialer  *websocket.Dialer

	mu         sync.Mutex
	conn       *clientConn
	connecting bool
	wg         sync.WaitGroup
}

type clientConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (cc *clientConn) close() {
	cc.once.Do(func() {
		close(cc.done)
		cc.ws.Close()
	})
}

// NewClient creates a client reporting to tracker
func NewClient(config ClientConfig, tracker *Tracker) *Client {
	return &Client{
		config:  config,
		tracker: tracker,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.DialTimeout,
		},
	}
}

// Connect dials the relay. A failed dial forces the tracker Offline. Only
// one dial runs at a time; overlapping calls get ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, c.config.ServerURL)
	}
	c.connecting = true
	c.mu.Unlock()

	ws, _, err := c.dialer.DialContext(ctx, c.config.ServerURL, nil)
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()

		c.tracker.OnConnectFailed()
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	cc := &clientConn{
		ws:   ws,
		send: make(chan []byte, c.config.SendQueueSize),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	c.conn = cc
	c.connecting = false
	c.mu.Unlock()

	c.tracker.OnConnect()

	c.wg.Add(2)
	go c.readLoop(cc)
	go c.writeLoop(cc)

	log.Info().Str("server_url", c.config.ServerURL).Msg("connected to relay")
	return nil
}

// Connected reports whether a live connection is open
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Emit queues frame for sending. It does not wait for the write.
func (c *Client) Emit(frame []byte) error {
	c.mu.Lock()
	cc := c.conn
	c.mu.Unlock()

	if cc == nil {
		return ErrNotConnected
	}

	select {
	case <-cc.done:
		return ErrNotConnected
	default:
	}

	select {
	case cc.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close sends a close frame and tears the connection down. The tracker sees
// a disconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	cc := c.conn
	c.mu.Unlock()

	if cc != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := cc.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			log.Debug().Err(err).Msg("failed to send close frame")
		}
		c.disconnect(cc)
	}

	c.wg.Wait()
	return nil
}

func (c *Client) disconnect(cc *clientConn) {
	cc.close()

	c.mu.Lock()
	current := c.conn == cc
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	if current {
		c.tracker.OnDisconnect()
		log.Info().Str("server_url", c.config.ServerURL).Msg("disconnected from relay")
	}
}

func (c *Client) readLoop(cc *clientConn) {
	defer c.wg.Done()
	defer c.disconnect(cc)

	for {
		_, message, err := cc.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("relay connection lost")
			}
			return
		}

		env, err := events.Decode(message)
		if err != nil {
			log.Warn().Err(err).Msg("dropped malformed frame")
			continue
		}

		switch env.Event {
		case models.EventPing:
			c.tracker.OnHeartbeat()
		default:
			log.Debug().Str("event", env.Event).Msg("ignored relay event")
		}
	}
}

func (c *Client) writeLoop(cc *clientConn) {
	defer c.wg.Done()

	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.send:
			cc.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := cc.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Msg("failed to send frame")
				c.disconnect(cc)
				return
			}
		}
	}
}
