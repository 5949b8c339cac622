package pathstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting writer metrics
type MetricsCollector interface {
	RecordSave(success bool, duration time.Duration)
	RecordPublish(publisher string, success bool)
	RecordDropped()
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordSave(success bool, duration time.Duration) {}
func (NoOpMetricsCollector) RecordPublish(publisher string, success bool)    {}
func (NoOpMetricsCollector) RecordDropped()                                  {}

// MetricsSnapshot is a point-in-time copy of CounterMetrics
type MetricsSnapshot struct {
	Saved         uint64        `json:"saved"`
	Failed        uint64        `json:"failed"`
	Dropped       uint64        `json:"dropped"`
	Published     uint64        `json:"published"`
	PublishFailed uint64        `json:"publish_failed"`
	LastSaveTook  time.Duration `json:"last_save_took"`
}

// CounterMetrics keeps in-process counters, exposed through the stats routes.
type CounterMetrics struct {
	saved         atomic.Uint64
	failed        atomic.Uint64
	dropped       atomic.Uint64
	published     atomic.Uint64
	publishFailed atomic.Uint64
	lastSaveTook  atomic.Int64
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{}
}

func (m *CounterMetrics) RecordSave(success bool, duration time.Duration) {
	if success {
		m.saved.Add(1)
	} else {
		m.failed.Add(1)
	}
	m.lastSaveTook.Store(int64(duration))
}

func (m *CounterMetrics) RecordPublish(publisher string, success bool) {
	if success {
		m.published.Add(1)
	} else {
		m.publishFailed.Add(1)
	}
}

func (m *CounterMetrics) RecordDropped() {
	m.dropped.Add(1)
}

func (m *CounterMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Saved:         m.saved.Load(),
		Failed:        m.failed.Load(),
		Dropped:       m.dropped.Load(),
		Published:     m.published.Load(),
		PublishFailed: m.publishFailed.Load(),
		LastSaveTook:  time.Duration(m.lastSaveTook.Load()),
	}
}
