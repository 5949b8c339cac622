package relay

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// HeartbeatEmitter owns one ticker per live connection, keyed by connection
// ID. A connection's ticker is only ever stopped by that connection's
// teardown.
type HeartbeatEmitter struct {
	clock    clockwork.Clock
	interval time.Duration

	mu     sync.Mutex
	timers map[string]*heartbeat
}

type heartbeat struct {
	ticker clockwork.Ticker
	done   chan struct{}
}

// NewHeartbeatEmitter creates an emitter ticking every interval
func NewHeartbeatEmitter(clock clockwork.Clock, interval time.Duration) *HeartbeatEmitter {
	return &HeartbeatEmitter{
		clock:    clock,
		interval: interval,
		timers:   make(map[string]*heartbeat),
	}
}

// Start arms the ticker for connectionID and calls beat on every tick. Ticks
// that fire while beat is still running are dropped, not queued.
func (h *HeartbeatEmitter) Start(connectionID string, beat func()) {
	hb := &heartbeat{
		ticker: h.clock.NewTicker(h.interval),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if existing, ok := h.timers[connectionID]; ok {
		existing.stop()
		log.Warn().Str("connection_id", connectionID).Msg("replaced existing heartbeat")
	}
	h.timers[connectionID] = hb
	h.mu.Unlock()

	go func() {
		for {
			select {
			case <-hb.done:
				return
			case <-hb.ticker.Chan():
				beat()
			}
		}
	}()

	log.Debug().
		Str("connection_id", connectionID).
		Dur("interval", h.interval).
		Msg("heartbeat started")
}

// Stop cancels the heartbeat for connectionID. It reports false if none was
// running.
func (h *HeartbeatEmitter) Stop(connectionID string) bool {
	h.mu.Lock()
	hb, ok := h.timers[connectionID]
	if ok {
		delete(h.timers, connectionID)
	}
	h.mu.Unlock()

	if !ok {
		return false
	}
	hb.stop()

	log.Debug().Str("connection_id", connectionID).Msg("heartbeat stopped")
	return true
}

// Active returns the number of running heartbeats
func (h *HeartbeatEmitter) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.timers)
}

// Running reports whether connectionID has a heartbeat
func (h *HeartbeatEmitter) Running(connectionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.timers[connectionID]
	return ok
}

// StopAll cancels every heartbeat, used on shutdown.
func (h *HeartbeatEmitter) StopAll() {
	h.mu.Lock()
	timers := h.timers
	h.timers = make(map[string]*heartbeat)
	h.mu.Unlock()

	for id, hb := range timers {
		hb.stop()
		log.Debug().Str("connection_id", id).Msg("cancelled heartbeat on shutdown")
	}
}

func (hb *heartbeat) stop() {
	hb.ticker.Stop()
	close(hb.done)
}
