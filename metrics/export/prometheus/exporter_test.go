package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	permgate "github.com/permgate/permgate"
)

type fakeSource struct {
	snapshot permgate.MetricsSnapshot
}

func (f *fakeSource) MetricsSnapshot() permgate.MetricsSnapshot {
	return f.snapshot
}

func TestRenderCounters(t *testing.T) {
	src := &fakeSource{
		snapshot: permgate.MetricsSnapshot{
			Counters: map[permgate.MetricID]uint64{
				permgate.MetricCheckGrant: 7,
				permgate.MetricCheckDeny:  3,
			},
			Histograms: map[permgate.MetricID][]uint64{},
		},
	}

	out := NewPrometheusExporterFromSource(src).Render()

	if !strings.Contains(out, "permgate_check_grant_total 7") {
		t.Fatalf("missing grant counter in output:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE permgate_check_deny_total counter") {
		t.Fatalf("missing deny TYPE line in output:\n%s", out)
	}
}

func TestRenderHistogramIsCumulative(t *testing.T) {
	src := &fakeSource{
		snapshot: permgate.MetricsSnapshot{
			Counters: map[permgate.MetricID]uint64{},
			Histograms: map[permgate.MetricID][]uint64{
				permgate.MetricResolveLatency: {1, 2, 0, 0, 0, 0, 0, 1},
			},
		},
	}

	out := NewPrometheusExporterFromSource(src).Render()

	if !strings.Contains(out, `permgate_resolve_latency_bucket{le="5us"} 3`) {
		t.Fatalf("bucket counts must be cumulative:\n%s", out)
	}
	if !strings.Contains(out, `permgate_resolve_latency_bucket{le="+Inf"} 4`) {
		t.Fatalf("+Inf bucket must equal total count:\n%s", out)
	}
	if !strings.Contains(out, "permgate_resolve_latency_count 4") {
		t.Fatalf("missing _count line:\n%s", out)
	}
}

func TestHandlerContentType(t *testing.T) {
	src := &fakeSource{snapshot: permgate.MetricsSnapshot{
		Counters:   map[permgate.MetricID]uint64{permgate.MetricCheckGrant: 1},
		Histograms: map[permgate.MetricID][]uint64{},
	}}

	rec := httptest.NewRecorder()
	NewPrometheusExporterFromSource(src).Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	ct := rec.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestEmptySnapshotRendersNothing(t *testing.T) {
	src := &fakeSource{snapshot: permgate.MetricsSnapshot{
		Counters:   map[permgate.MetricID]uint64{},
		Histograms: map[permgate.MetricID][]uint64{},
	}}
	if out := NewPrometheusExporterFromSource(src).Render(); out != "" {
		t.Fatalf("expected empty render, got:\n%s", out)
	}
}
