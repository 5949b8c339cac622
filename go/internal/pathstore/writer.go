package pathstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// WriterConfig sizes the persistence worker pool
type WriterConfig struct {
	Workers   int
	QueueSize int
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Workers:   2,
		QueueSize: 64,
	}
}

// WriterOption customizes a Writer
type WriterOption func(*Writer)

// WithPublishers adds publishers notified after each successful save.
func WithPublishers(publishers ...Publisher) WriterOption {
	return func(w *Writer) {
		w.publishers = append(w.publishers, publishers...)
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) WriterOption {
	return func(w *Writer) {
		w.metrics = m
	}
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(c clockwork.Clock) WriterOption {
	return func(w *Writer) {
		w.clock = c
	}
}

// Writer persists submissions in the background. Submit never blocks and
// failures are only logged: the submitting client never hears back.
type Writer struct {
	store      Store
	publishers []Publisher
	metrics    MetricsCollector
	clock      clockwork.Clock
	config     WriterConfig

	workCh chan Submission

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWriter creates a writer over store
func NewWriter(store Store, config WriterConfig, opts ...WriterOption) *Writer {
	if config.Workers <= 0 {
		config.Workers = DefaultWriterConfig().Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultWriterConfig().QueueSize
	}

	w := &Writer{
		store:   store,
		metrics: NoOpMetricsCollector{},
		clock:   clockwork.NewRealClock(),
		config:  config,
		workCh:  make(chan Submission, config.QueueSize),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the worker pool
func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("path writer already running")
	}
	if w.stopped {
		return ErrWriterStopped
	}
	w.running = true

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	for i := 0; i < w.config.Workers; i++ {
		w.wg.Add(1)
		go w.worker(workerCtx, i)
	}

	log.Info().
		Int("workers", w.config.Workers).
		Int("queue_size", w.config.QueueSize).
		Msg("path writer started")
	return nil
}

// Submit enqueues a submission.
func (w *Writer) Submit(sub Submission) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWriterStopped
	}

	select {
	case w.workCh <- sub:
		return nil
	default:
		w.metrics.RecordDropped()
		return ErrQueueFull
	}
}

// Stop drains queued submissions and waits for the workers to exit. If the
// writer was never started, queued submissions are saved on the calling
// goroutine.
func (w *Writer) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("path writer not running")
	}
	w.stopped = true
	wasRunning := w.running
	w.running = false
	close(w.workCh)
	w.mu.Unlock()

	if wasRunning {
		w.wg.Wait()
		w.cancel()
	} else if pending := len(w.workCh); pending > 0 {
		log.Warn().
			Int("pending", pending).
			Msg("path writer stopped before start, saving queued paths inline")
		for sub := range w.workCh {
			w.persist(context.Background(), sub, -1)
		}
	}

	log.Info().Msg("path writer stopped")
	return nil
}

func (w *Writer) worker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for sub := range w.workCh {
		w.persist(ctx, sub, workerID)
	}
}

func (w *Writer) persist(ctx context.Context, sub Submission, workerID int) {
	start := w.clock.Now()
	name, err := w.store.Save(ctx, sub)
	w.metrics.RecordSave(err == nil, w.clock.Since(start))
	if err != nil {
		log.Error().
			Err(err).
			Str("connection_id", sub.ConnectionID).
			Int("points", sub.PointCount()).
			Int("worker_id", workerID).
			Msg("failed to save path")
		return
	}

	log.Info().
		Str("file_name", name).
		Str("connection_id", sub.ConnectionID).
		Int("points", sub.PointCount()).
		Msg("new path")

	saved := SavedPath{Submission: sub, FileName: name, SavedAt: w.clock.Now()}
	for _, p := range w.publishers {
		if err := p.Publish(ctx, saved); err != nil {
			w.metrics.RecordPublish(p.Name(), false)
			log.Error().
				Err(err).
				Str("publisher", p.Name()).
				Str("file_name", name).
				Msg("failed to publish saved path")
			continue
		}
		w.metrics.RecordPublish(p.Name(), true)
	}
}
