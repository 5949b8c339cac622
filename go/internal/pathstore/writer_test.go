package pathstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type recordingPublisher struct {
	mu    sync.Mutex
	saved []SavedPath
	err   error
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(ctx context.Context, saved SavedPath) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, saved)
	return p.err
}

func (p *recordingPublisher) all() []SavedPath {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SavedPath(nil), p.saved...)
}

type failingStore struct {
	calls int
	mu    sync.Mutex
}

func (s *failingStore) Save(ctx context.Context, sub Submission) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "", errors.New("disk full")
}

type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, sub Submission) (string, error) {
	<-s.release
	return FileName(sub.ReceivedAt, 0), nil
}

func TestWriter_PersistsAndPublishes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000500))
	pub := &recordingPublisher{}
	metrics := NewCounterMetrics()
	w := NewWriter(store, WriterConfig{Workers: 2, QueueSize: 8},
		WithPublishers(pub), WithMetrics(metrics), WithClock(clock))

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub := Submission{ConnectionID: "conn-1", ReceivedAt: time.UnixMilli(1700000000123), Path: testPath()}
	if err := w.Submit(sub); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "path_1700000000123")); err != nil {
		t.Errorf("expected saved file: %v", err)
	}

	saved := pub.all()
	if len(saved) != 1 {
		t.Fatalf("publisher called %d times, want 1", len(saved))
	}
	if saved[0].FileName != "path_1700000000123" {
		t.Errorf("published file name = %q", saved[0].FileName)
	}
	if saved[0].ConnectionID != "conn-1" || len(saved[0].Path) != 3 {
		t.Errorf("published submission = %+v", saved[0].Submission)
	}
	if !saved[0].SavedAt.Equal(clock.Now()) {
		t.Errorf("saved at = %v, want %v", saved[0].SavedAt, clock.Now())
	}

	snap := metrics.Snapshot()
	if snap.Saved != 1 || snap.Failed != 0 || snap.Published != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestWriter_StoreFailureIsLoggedNotPublished(t *testing.T) {
	store := &failingStore{}
	pub := &recordingPublisher{}
	metrics := NewCounterMetrics()
	w := NewWriter(store, WriterConfig{Workers: 1, QueueSize: 4}, WithPublishers(pub), WithMetrics(metrics))

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Submit(Submission{ReceivedAt: time.UnixMilli(int64(i)), Path: testPath()}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if store.calls != 3 {
		t.Errorf("store called %d times, want 3 (no retries)", store.calls)
	}
	if len(pub.all()) != 0 {
		t.Error("failed saves must not be published")
	}
	if snap := metrics.Snapshot(); snap.Failed != 3 || snap.Saved != 0 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestWriter_PublisherFailureDoesNotStopOthers(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	broken := &recordingPublisher{err: errors.New("broker down")}
	healthy := &recordingPublisher{}
	metrics := NewCounterMetrics()
	w := NewWriter(store, DefaultWriterConfig(), WithPublishers(broken, healthy), WithMetrics(metrics))

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Submit(Submission{ReceivedAt: time.UnixMilli(42), Path: testPath()}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if len(healthy.all()) != 1 {
		t.Error("healthy publisher should still be notified")
	}
	if snap := metrics.Snapshot(); snap.PublishFailed != 1 || snap.Published != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestWriter_QueueFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	metrics := NewCounterMetrics()
	w := NewWriter(store, WriterConfig{Workers: 1, QueueSize: 1}, WithMetrics(metrics))

	// Not started: nothing drains the queue.
	if err := w.Submit(Submission{ReceivedAt: time.UnixMilli(1)}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := w.Submit(Submission{ReceivedAt: time.UnixMilli(2)}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second Submit error = %v, want ErrQueueFull", err)
	}
	if metrics.Snapshot().Dropped != 1 {
		t.Errorf("dropped = %d, want 1", metrics.Snapshot().Dropped)
	}

	close(store.release)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestWriter_SubmitAfterStop(t *testing.T) {
	w := NewWriter(&failingStore{}, DefaultWriterConfig())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := w.Submit(Submission{}); !errors.Is(err, ErrWriterStopped) {
		t.Errorf("Submit after Stop error = %v, want ErrWriterStopped", err)
	}
	if err := w.Stop(); err == nil {
		t.Error("second Stop should fail")
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrWriterStopped) {
		t.Errorf("Start after Stop error = %v, want ErrWriterStopped", err)
	}
}

func TestWriter_StopWithoutStartSavesQueued(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	pub := &recordingPublisher{}
	w := NewWriter(store, WriterConfig{Workers: 1, QueueSize: 4}, WithPublishers(pub))

	for _, ms := range []int64{1700000000001, 1700000000002} {
		if err := w.Submit(Submission{ReceivedAt: time.UnixMilli(ms), Path: testPath()}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for _, name := range []string{"path_1700000000001", "path_1700000000002"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("queued submission not saved: %v", err)
		}
	}
	if n := len(pub.all()); n != 2 {
		t.Errorf("published %d, want 2", n)
	}
}

func TestWriter_DoubleStart(t *testing.T) {
	w := NewWriter(&failingStore{}, DefaultWriterConfig())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}
