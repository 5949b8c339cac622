package globe

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/globepath/go/internal/models"
	"github.com/rs/zerolog/log"
)

// TrackerConfig sets the expected heartbeat period and the watchdog window.
type TrackerConfig struct {
	HeartbeatInterval time.Duration
	Timeout           time.Duration
}

// DefaultTrackerConfig matches the relay's 1 s heartbeat with a 2 s window.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		HeartbeatInterval: time.Second,
		Timeout:           2 * time.Second,
	}
}

// Validate requires the watchdog window to outlast one heartbeat period.
func (c TrackerConfig) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	if c.Timeout <= c.HeartbeatInterval {
		return fmt.Errorf("watchdog timeout %v must exceed heartbeat interval %v", c.Timeout, c.HeartbeatInterval)
	}
	return nil
}

// watchdogGrace pushes the watchdog past the timeout boundary.
const watchdogGrace = time.Millisecond

// Transition describes a single state change.
type Transition struct {
	From   models.ConnectionState
	To     models.ConnectionState
	Reason string
	At     time.Time
}

// Transition reasons
const (
	ReasonConnected     = "connected"
	ReasonHeartbeat     = "heartbeat"
	ReasonWatchdog      = "watchdog"
	ReasonDisconnected  = "disconnected"
	ReasonConnectFailed = "connect_failed"
)

// Tracker turns connect, disconnect and heartbeat signals into a
// ConnectionState. Every heartbeat arms its own watchdog. A watchdog only
// takes the tracker Offline if the last recorded heartbeat is still the one
// that armed it.
type Tracker struct {
	clock   clockwork.Clock
	timeout time.Duration

	mu            sync.Mutex
	state         models.ConnectionState
	lastHeartbeat time.Time
	watchdog      clockwork.Timer
	closed        bool
	subscribers   map[int]func(Transition)
	nextSubID     int

	// notifyMu serializes transitions with their callbacks. It is always
	// taken before mu.
	notifyMu sync.Mutex
}

// NewTracker creates a tracker in the Connecting state.
func NewTracker(clock clockwork.Clock, config TrackerConfig) (*Tracker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		clock:       clock,
		timeout:     config.Timeout,
		state:       models.ConnectionStateConnecting,
		subscribers: make(map[int]func(Transition)),
	}, nil
}

// State returns the current connection state.
func (t *Tracker) State() models.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastHeartbeat returns when the most recent heartbeat was recorded, or the
// zero time if none has arrived.
func (t *Tracker) LastHeartbeat() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastHeartbeat
}

// Subscribe registers fn for every state change and returns a function that
// removes it. Callbacks run on the goroutine that caused the change, in
// transition order. They may call State and LastHeartbeat but must not call
// the tracker's On* methods.
func (t *Tracker) Subscribe(fn func(Transition)) func() {
	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, id)
			t.mu.Unlock()
		})
	}
}

// OnConnect records the connect acknowledgment.
func (t *Tracker) OnConnect() {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	t.transitionLocked(models.ConnectionStateOnline, ReasonConnected)
}

// OnHeartbeat records the receipt time and arms a watchdog for it. The
// watchdog fires just after the timeout so a gap of exactly the timeout
// still counts as live.
func (t *Tracker) OnHeartbeat() {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	receivedAt := t.clock.Now()
	t.lastHeartbeat = receivedAt
	t.watchdog = t.clock.AfterFunc(t.timeout+watchdogGrace, func() {
		t.expire(receivedAt)
	})

	t.transitionLocked(models.ConnectionStateOnline, ReasonHeartbeat)
}

// OnDisconnect forces Offline whatever watchdog is pending.
func (t *Tracker) OnDisconnect() {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	t.transitionLocked(models.ConnectionStateOffline, ReasonDisconnected)
}

// OnConnectFailed forces Offline after a failed dial.
func (t *Tracker) OnConnectFailed() {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	t.transitionLocked(models.ConnectionStateOffline, ReasonConnectFailed)
}

// Close stops the pending watchdog. Later heartbeats arm nothing.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.watchdog != nil {
		t.watchdog.Stop()
		t.watchdog = nil
	}
}

// expire is the watchdog body for the heartbeat recorded at armedFor.
func (t *Tracker) expire(armedFor time.Time) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	if t.closed || !t.lastHeartbeat.Equal(armedFor) {
		t.mu.Unlock()
		return
	}

	log.Debug().
		Time("last_heartbeat", armedFor).
		Dur("timeout", t.timeout).
		Msg("heartbeat watchdog expired")

	t.transitionLocked(models.ConnectionStateOffline, ReasonWatchdog)
}

// transitionLocked must be called with t.notifyMu and t.mu held. It releases
// t.mu before running subscribers, so they may read the tracker. Repeating the
// current state is not a transition and notifies nobody.
func (t *Tracker) transitionLocked(to models.ConnectionState, reason string) {
	if t.state == to {
		t.mu.Unlock()
		return
	}

	tr := Transition{From: t.state, To: to, Reason: reason, At: t.clock.Now()}
	t.state = to

	subs := make([]func(Transition), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		subs = append(subs, fn)
	}

	t.mu.Unlock()

	for _, fn := range subs {
		fn(tr)
	}
}
