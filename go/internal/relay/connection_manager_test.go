package relay

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/globepath/go/internal/events"
	"github.com/mcdev12/globepath/go/internal/models"
	"github.com/mcdev12/globepath/go/internal/pathstore"
)

type recordingSink struct {
	mu   sync.Mutex
	subs []pathstore.Submission
	err  error
}

func (s *recordingSink) Submit(sub pathstore.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *recordingSink) all() []pathstore.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pathstore.Submission(nil), s.subs...)
}

func newTestManager(t *testing.T, interval time.Duration, sink PathSink) (*ConnectionManager, *httptest.Server) {
	t.Helper()
	config := DefaultConnectionConfig()
	config.HeartbeatInterval = interval
	cm := NewConnectionManager(config, clockwork.NewRealClock(), sink)

	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(cm).HandleConnection))
	t.Cleanup(func() {
		cm.CloseAll()
		srv.Close()
	})
	return cm, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readPing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := events.Decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != models.EventPing {
		t.Fatalf("event = %q, want ping", env.Event)
	}
}

func waitForConnections(t *testing.T, cm *ConnectionManager, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cm.GetConnectionStats()["total_connections"] == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connections = %v, want %d", cm.GetConnectionStats()["total_connections"], want)
}

func TestConnectionManager_HeartbeatSurvivesOtherDisconnect(t *testing.T) {
	cm, srv := newTestManager(t, 20*time.Millisecond, &recordingSink{})

	a := dial(t, srv)
	b := dial(t, srv)
	defer b.Close()

	readPing(t, a)
	readPing(t, b)
	waitForConnections(t, cm, 2)

	a.Close()
	waitForConnections(t, cm, 1)

	if n := cm.GetConnectionStats()["active_heartbeats"]; n != 1 {
		t.Fatalf("active heartbeats = %v, want 1", n)
	}
	for i := 0; i < 3; i++ {
		readPing(t, b)
	}
}

func TestConnectionManager_SavePathReachesSink(t *testing.T) {
	sink := &recordingSink{}
	cm, srv := newTestManager(t, time.Hour, sink)

	conn := dial(t, srv)
	defer conn.Close()
	waitForConnections(t, cm, 1)

	path := models.Path{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}
	frame, err := events.SavePathFrame(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.all()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	subs := sink.all()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if len(subs[0].Path) != 2 || subs[0].Path[1] != path[1] {
		t.Errorf("submitted path = %+v", subs[0].Path)
	}
	if subs[0].ConnectionID == "" || subs[0].ReceivedAt.IsZero() {
		t.Errorf("submission missing metadata: %+v", subs[0])
	}
}

func TestConnection_HandleClientMessage(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	sink := &recordingSink{}
	cm := NewConnectionManager(DefaultConnectionConfig(), clock, sink)
	conn := &Connection{ID: "conn-1", Manager: cm}

	err := conn.handleClientMessage([]byte(`{"event":"draw","data":[]}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown event error = %v", err)
	}

	if err := conn.handleClientMessage([]byte(`not json`)); err == nil {
		t.Error("malformed frame should fail")
	}
	if err := conn.handleClientMessage([]byte(`{"event":"save-path","data":{"x":1}}`)); err == nil {
		t.Error("non-array payload should fail")
	}

	if err := conn.handleClientMessage([]byte(`{"event":"save-path","data":[{"x":1,"y":2,"z":3}]}`)); err != nil {
		t.Fatalf("save-path: %v", err)
	}
	subs := sink.all()
	if len(subs) != 1 || !subs[0].ReceivedAt.Equal(clock.Now()) || subs[0].ConnectionID != "conn-1" {
		t.Fatalf("submissions = %+v", subs)
	}

	// Points are stored as sent, extra fields and all.
	raw := `[{"x":1,"y":2,"z":3,"label":"start"},[4,5,6]]`
	if err := conn.handleClientMessage([]byte(`{"event":"save-path","data":` + raw + `}`)); err != nil {
		t.Fatalf("save-path with extra fields: %v", err)
	}
	subs = sink.all()
	if len(subs) != 2 {
		t.Fatalf("submissions = %d, want 2", len(subs))
	}
	if string(subs[1].Raw) != raw {
		t.Errorf("raw payload = %s, want %s", subs[1].Raw, raw)
	}
	if n := subs[1].PointCount(); n != 2 {
		t.Errorf("point count = %d, want 2", n)
	}

	// Queue failures are logged, never returned to the client.
	sink.mu.Lock()
	sink.err = pathstore.ErrQueueFull
	sink.mu.Unlock()
	if err := conn.handleClientMessage([]byte(`{"event":"save-path","data":[]}`)); err != nil {
		t.Errorf("queue failure surfaced: %v", err)
	}
}
