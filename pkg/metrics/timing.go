// Package metrics provides performance instrumentation for satlas.
//
// The engine's frame loop is budgeted, so timing visibility is not optional
// tooling here: the progressive loader sizes its batches off the same
// wall-clock measurements these metrics record, and the debug HUD renders
// AllTimingStats directly.
//
// Metrics are collected in-memory with atomic operations for thread-safety.
// Collection is enabled by default but can be disabled via SATLAS_METRICS=0.
//
// Usage:
//
//	func (e *Engine) Frame(now time.Time) error {
//	    defer metrics.Timer(metrics.FrameTotal)()
//	    // ... frame pipeline
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

// enabled controls whether metrics are collected.
// Defaults to true unless SATLAS_METRICS=0 is set.
var enabled = os.Getenv("SATLAS_METRICS") != "0"

// Enabled returns whether metrics collection is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of metrics collection.
func SetEnabled(e bool) {
	enabled = e
}

// TimingMetric tracks timing statistics for a named operation.
// All methods are thread-safe using atomic operations.
type TimingMetric struct {
	name    string
	count   int64
	totalNs int64
	maxNs   int64
	minNs   int64 // 0 means not set
}

// newTimingMetric creates a new timing metric with the given name.
func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record records a single timing measurement.
// Thread-safe via atomic operations.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled {
		return
	}
	ns := d.Nanoseconds()

	atomic.AddInt64(&m.count, 1)
	atomic.AddInt64(&m.totalNs, ns)

	// Update max atomically using compare-and-swap
	for {
		old := atomic.LoadInt64(&m.maxNs)
		if ns <= old || atomic.CompareAndSwapInt64(&m.maxNs, old, ns) {
			break
		}
	}

	// Update min atomically using compare-and-swap
	for {
		old := atomic.LoadInt64(&m.minNs)
		if old != 0 && ns >= old {
			break
		}
		if atomic.CompareAndSwapInt64(&m.minNs, old, ns) {
			break
		}
	}
}

// Name returns the metric name.
func (m *TimingMetric) Name() string {
	return m.name
}

// Count returns the number of recorded measurements.
func (m *TimingMetric) Count() int64 {
	return atomic.LoadInt64(&m.count)
}

// TotalNs returns the total time in nanoseconds.
func (m *TimingMetric) TotalNs() int64 {
	return atomic.LoadInt64(&m.totalNs)
}

// MaxNs returns the maximum recorded time in nanoseconds.
func (m *TimingMetric) MaxNs() int64 {
	return atomic.LoadInt64(&m.maxNs)
}

// MinNs returns the minimum recorded time in nanoseconds.
// Returns 0 if no measurements have been recorded.
func (m *TimingMetric) MinNs() int64 {
	return atomic.LoadInt64(&m.minNs)
}

// AvgNs returns the average time in nanoseconds.
// Returns 0 if no measurements have been recorded.
func (m *TimingMetric) AvgNs() int64 {
	count := atomic.LoadInt64(&m.count)
	if count == 0 {
		return 0
	}
	total := atomic.LoadInt64(&m.totalNs)
	return total / count
}

// Stats returns all timing statistics at once.
func (m *TimingMetric) Stats() TimingStats {
	count := atomic.LoadInt64(&m.count)
	totalNs := atomic.LoadInt64(&m.totalNs)
	maxNs := atomic.LoadInt64(&m.maxNs)
	minNs := atomic.LoadInt64(&m.minNs)

	var avgNs int64
	if count > 0 {
		avgNs = totalNs / count
	}

	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(totalNs) / 1e6,
		AvgMs:   float64(avgNs) / 1e6,
		MaxMs:   float64(maxNs) / 1e6,
		MinMs:   float64(minNs) / 1e6,
	}
}

// Reset clears all recorded measurements.
func (m *TimingMetric) Reset() {
	atomic.StoreInt64(&m.count, 0)
	atomic.StoreInt64(&m.totalNs, 0)
	atomic.StoreInt64(&m.maxNs, 0)
	atomic.StoreInt64(&m.minNs, 0)
}

// TimingStats holds a snapshot of timing statistics.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer returns a function that records elapsed time when called.
// Use with defer for automatic timing:
//
//	func rebuild() {
//	    defer metrics.Timer(metrics.IndexRebuild)()
//	    // ... function body
//	}
func Timer(m *TimingMetric) func() {
	if !enabled || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.Record(time.Since(start))
	}
}

// TimerWithCallback returns a function that records elapsed time
// and also calls the provided callback with the duration.
func TimerWithCallback(m *TimingMetric, cb func(time.Duration)) func() {
	if !enabled || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start)
		m.Record(d)
		if cb != nil {
			cb(d)
		}
	}
}

// CounterMetric counts occurrences of a named event.
type CounterMetric struct {
	name  string
	count int64
}

func newCounterMetric(name string) *CounterMetric {
	return &CounterMetric{name: name}
}

// Inc adds one to the counter.
func (c *CounterMetric) Inc() {
	if !enabled {
		return
	}
	atomic.AddInt64(&c.count, 1)
}

// Add adds n to the counter.
func (c *CounterMetric) Add(n int64) {
	if !enabled {
		return
	}
	atomic.AddInt64(&c.count, n)
}

// Name returns the counter name.
func (c *CounterMetric) Name() string {
	return c.name
}

// Count returns the current value.
func (c *CounterMetric) Count() int64 {
	return atomic.LoadInt64(&c.count)
}

// Reset clears the counter.
func (c *CounterMetric) Reset() {
	atomic.StoreInt64(&c.count, 0)
}

// Global timing metrics for the frame pipeline and supporting paths.
var (
	FrameTotal     = newTimingMetric("frame_total")
	SimTick        = newTimingMetric("sim_tick")
	IndexRebuild   = newTimingMetric("index_rebuild")
	LoadAdmit      = newTimingMetric("load_admit")
	RenderFrame    = newTimingMetric("render_frame")
	HitTest        = newTimingMetric("hit_test")
	DatasetParse   = newTimingMetric("dataset_parse")
	SnapshotExport = newTimingMetric("snapshot_export")
	StatsCompute   = newTimingMetric("stats_compute")
)

// Global counters for frame-loop events.
var (
	NodesAdmitted    = newCounterMetric("nodes_admitted")
	BatchesDiscarded = newCounterMetric("batches_discarded")
	ClustersFormed   = newCounterMetric("clusters_formed")
	FramesOverBudget = newCounterMetric("frames_over_budget")
)

// AllTimingMetrics returns all registered timing metrics.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{
		FrameTotal,
		SimTick,
		IndexRebuild,
		LoadAdmit,
		RenderFrame,
		HitTest,
		DatasetParse,
		SnapshotExport,
		StatsCompute,
	}
}

// AllCounterMetrics returns all registered counters.
func AllCounterMetrics() []*CounterMetric {
	return []*CounterMetric{
		NodesAdmitted,
		BatchesDiscarded,
		ClustersFormed,
		FramesOverBudget,
	}
}

// ResetAll resets all timing metrics and counters.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
	for _, c := range AllCounterMetrics() {
		c.Reset()
	}
}

// AllTimingStats returns stats for all timing metrics that have data.
func AllTimingStats() []TimingStats {
	metrics := AllTimingMetrics()
	stats := make([]TimingStats, 0, len(metrics))
	for _, m := range metrics {
		if m.Count() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}
