package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram bucket.
type MetricID uint16

const (
	// MetricCheckGrant counts permission checks that resolved to grant.
	MetricCheckGrant MetricID = iota
	// MetricCheckDeny counts permission checks that resolved to deny.
	MetricCheckDeny
	// MetricCheckDefaulted counts checks where every source was silent and the
	// caller-supplied default was returned.
	MetricCheckDefaulted
	// MetricCheckRejected counts checks rejected for invalid arguments.
	MetricCheckRejected
	// MetricDirectAdded counts direct-permission add mutations.
	MetricDirectAdded
	// MetricDirectRemoved counts direct-permission remove mutations.
	MetricDirectRemoved
	// MetricGroupPermsAdded counts group-permission add mutations.
	MetricGroupPermsAdded
	// MetricGroupPermsRemoved counts group-permission remove mutations.
	MetricGroupPermsRemoved
	// MetricMembershipAdded counts membership add mutations.
	MetricMembershipAdded
	// MetricMembershipRemoved counts membership remove mutations.
	MetricMembershipRemoved
	// MetricMutationNoOp counts mutations suppressed as no-ops.
	MetricMutationNoOp
	// MetricEventsEmitted counts change events delivered to subscribers.
	MetricEventsEmitted
	// MetricSourceAdded counts sources registered after construction.
	MetricSourceAdded
	// MetricSourceRemoved counts sources removed from the registry.
	MetricSourceRemoved
	// MetricResolveLatency is the resolution-latency histogram.
	MetricResolveLatency

	// MetricIDCount is the number of defined metric IDs.
	MetricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds atomic counters and an optional latency histogram. A nil or
// disabled Metrics accepts every call as a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]metricHistogram
}

// Snapshot is a point-in-time deep copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter. Out-of-range IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a resolution latency sample. Only MetricResolveLatency has
// histogram storage; other IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricResolveLatency {
		return
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all counters and histogram buckets. A disabled Metrics
// snapshots to empty maps so exporters need no nil checks.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricResolveLatency].buckets[i])
		}
		s.Histograms[MetricResolveLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 1:
		return 0
	case us <= 5:
		return 1
	case us <= 10:
		return 2
	case us <= 50:
		return 3
	case us <= 100:
		return 4
	case us <= 500:
		return 5
	case us <= 1000:
		return 6
	default:
		return 7
	}
}
