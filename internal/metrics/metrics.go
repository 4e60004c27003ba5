package metrics

import "sync/atomic"

// MetricID indexes one counter or histogram slot.
type MetricID uint8

const (
	MetricSessionCreated MetricID = iota
	MetricSessionValidated
	MetricSessionRejected
	MetricSessionRevoked
	MetricRevokeAll
	MetricFingerprintMismatch
	MetricCSRFIssued
	MetricCSRFRejected
	MetricBearerIssued
	MetricBearerFallback
	MetricBearerRejected
	MetricStoreUnavailable
	MetricDrainRejected
	MetricValidateLatency

	MetricIDCount
)

// HistogramBuckets is the fixed bucket count for latency histograms.
const HistogramBuckets = 8

// bucket upper bounds in microseconds; the last bucket is +Inf
var bucketBoundsMicros = [HistogramBuckets - 1]uint64{
	50, 100, 250, 500, 1000, 5000, 25000,
}

// Config controls metric collection. When Enabled is false every operation
// is a no-op with no atomic traffic.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// paddedCounter keeps each hot counter on its own cache line.
type paddedCounter struct {
	value uint64
	_     [7]uint64
}

// Metrics holds lock-free counters and optional latency histograms. The
// write path is allocation-free.
type Metrics struct {
	cfg        Config
	counters   [MetricIDCount]paddedCounter
	histograms [MetricIDCount][HistogramBuckets]uint64
}

// Snapshot is a point-in-time deep copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][HistogramBuckets]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{cfg: cfg}
}

// Inc atomically increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.cfg.Enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// ObserveMicros records a latency sample in microseconds.
func (m *Metrics) ObserveMicros(id MetricID, micros uint64) {
	if m == nil || !m.cfg.Enabled || !m.cfg.EnableLatency || id >= MetricIDCount {
		return
	}

	bucket := HistogramBuckets - 1
	for i, bound := range bucketBoundsMicros {
		if micros <= bound {
			bucket = i
			break
		}
	}
	atomic.AddUint64(&m.histograms[id][bucket], 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// SnapshotNow deep-copies all non-zero metric slots.
func (m *Metrics) SnapshotNow() Snapshot {
	snap := Snapshot{
		Counters:   make(map[MetricID]uint64),
		Histograms: make(map[MetricID][HistogramBuckets]uint64),
	}
	if m == nil || !m.cfg.Enabled {
		return snap
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if v := atomic.LoadUint64(&m.counters[id].value); v > 0 {
			snap.Counters[id] = v
		}

		var buckets [HistogramBuckets]uint64
		var any bool
		for b := 0; b < HistogramBuckets; b++ {
			buckets[b] = atomic.LoadUint64(&m.histograms[id][b])
			if buckets[b] > 0 {
				any = true
			}
		}
		if any {
			snap.Histograms[id] = buckets
		}
	}

	return snap
}
