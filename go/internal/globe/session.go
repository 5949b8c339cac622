package globe

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// InputKind identifies a user gesture
type InputKind int

const (
	// InputSecondaryClick is a right click on the globe
	InputSecondaryClick InputKind = iota
	// InputSave is the save button
	InputSave
)

// InputEvent is a single gesture. X and Y are screen coordinates.
type InputEvent struct {
	Kind  InputKind
	X, Y  float64
	Shift bool
}

// InputSource delivers gestures to subscribed handlers.
type InputSource interface {
	Subscribe(handler func(InputEvent)) (unsubscribe func())
}

// Session connects user input, the path and the tracker to the relay.
type Session struct {
	tracker *Tracker
	path    *PathAccumulator
	emitter Emitter

	mu          sync.Mutex
	unsubscribe func()
}

// NewSession wires a session. emitter is usually a *Client.
func NewSession(tracker *Tracker, path *PathAccumulator, emitter Emitter) *Session {
	return &Session{
		tracker: tracker,
		path:    path,
		emitter: emitter,
	}
}

// Mount registers the session's input handler on source. Mounting twice
// without Unmount is an error so handlers never stack.
func (s *Session) Mount(source InputSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		return ErrAlreadyMounted
	}
	s.unsubscribe = source.Subscribe(s.HandleInput)
	return nil
}

// Unmount removes the input handler. It is safe to call when not mounted.
func (s *Session) Unmount() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// HandleInput maps a gesture to a path operation. Shift with a secondary
// click resets, a plain secondary click adds a point.
func (s *Session) HandleInput(ev InputEvent) {
	switch ev.Kind {
	case InputSecondaryClick:
		if ev.Shift {
			s.path.Reset()
			log.Debug().Msg("path reset")
			return
		}
		if s.path.AddPoint(ev.X, ev.Y) {
			log.Debug().Int("points", s.path.Len()).Msg("point added")
		}
	case InputSave:
		if err := s.Save(); err != nil {
			log.Debug().Err(err).Msg("save skipped")
		}
	}
}

// Save submits the current path if the tracker is Online.
func (s *Session) Save() error {
	return s.path.Submit(s.tracker.State(), s.emitter)
}

// CanSubmit reports whether Save would send
func (s *Session) CanSubmit() bool {
	return s.Indicator().SaveEnabled
}

// Indicator returns the current indicator
func (s *Session) Indicator() Indicator {
	return IndicatorFor(s.tracker.State(), s.path.Len())
}

// Path returns the session's accumulator
func (s *Session) Path() *PathAccumulator {
	return s.path
}

// InputBus is an in-process InputSource.
type InputBus struct {
	mu       sync.RWMutex
	handlers map[int]func(InputEvent)
	nextID   int
}

func NewInputBus() *InputBus {
	return &InputBus{handlers: make(map[int]func(InputEvent))}
}

// Subscribe adds handler until the returned function is called.
func (b *InputBus) Subscribe(handler func(InputEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every handler.
func (b *InputBus) Publish(ev InputEvent) {
	b.mu.RLock()
	handlers := make([]func(InputEvent), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Handlers returns the number of registered handlers.
func (b *InputBus) Handlers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
