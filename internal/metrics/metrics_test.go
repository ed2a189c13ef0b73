package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m := New(Config{})

	m.Inc(MetricCheckGrant)
	m.Observe(MetricResolveLatency, time.Millisecond)

	if got := m.Value(MetricCheckGrant); got != 0 {
		t.Fatalf("disabled counter = %d, want 0", got)
	}
	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty, got %d counters", len(s.Counters))
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricCheckDeny)
	m.Observe(MetricResolveLatency, time.Second)
	if m.Value(MetricCheckDeny) != 0 {
		t.Fatal("nil metrics must read zero")
	}
	if s := m.Snapshot(); s.Counters == nil {
		t.Fatal("nil metrics snapshot must still return usable maps")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := New(Config{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricCheckGrant)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricCheckGrant); got != workers*perWorker {
		t.Fatalf("counter = %d, want %d", got, workers*perWorker)
	}
}

func TestLatencyBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})

	m.Observe(MetricResolveLatency, 500*time.Nanosecond) // bucket 0
	m.Observe(MetricResolveLatency, 7*time.Microsecond)  // bucket 2
	m.Observe(MetricResolveLatency, time.Second)         // bucket 7

	s := m.Snapshot()
	buckets := s.Histograms[MetricResolveLatency]
	if len(buckets) != 8 {
		t.Fatalf("bucket count = %d, want 8", len(buckets))
	}
	if buckets[0] != 1 || buckets[2] != 1 || buckets[7] != 1 {
		t.Fatalf("bucket distribution = %v", buckets)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Inc(MetricSourceAdded)

	s := m.Snapshot()
	m.Inc(MetricSourceAdded)

	if s.Counters[MetricSourceAdded] != 1 {
		t.Fatalf("snapshot mutated after the fact: %d", s.Counters[MetricSourceAdded])
	}
}
