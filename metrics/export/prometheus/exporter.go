package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	permgate "github.com/permgate/permgate"
	"github.com/permgate/permgate/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() permgate.MetricsSnapshot
}

// PrometheusExporter renders permgate metrics in Prometheus text exposition
// format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates an exporter that reads from the given
// [permgate.Engine].
func NewPrometheusExporter(engine *permgate.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter from a custom snapshot
// source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves the current metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return ""
	}

	var sb strings.Builder

	for _, def := range internaldefs.CounterDefs {
		value, ok := snapshot.Counters[def.ID]
		if !ok {
			continue
		}
		sb.WriteString("# HELP ")
		sb.WriteString(def.Name)
		sb.WriteByte(' ')
		sb.WriteString(def.Help)
		sb.WriteByte('\n')
		sb.WriteString("# TYPE ")
		sb.WriteString(def.Name)
		sb.WriteString(" counter\n")
		sb.WriteString(def.Name)
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatUint(value, 10))
		sb.WriteByte('\n')
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		sb.WriteString("# HELP ")
		sb.WriteString(def.Name)
		sb.WriteByte(' ')
		sb.WriteString(def.Help)
		sb.WriteByte('\n')
		sb.WriteString("# TYPE ")
		sb.WriteString(def.Name)
		sb.WriteString(" histogram\n")

		var cumulative uint64
		for i, count := range buckets {
			cumulative += count
			le := internaldefs.HistogramBoundSuffix[i]
			if le == "inf" {
				le = "+Inf"
			}
			sb.WriteString(def.Name)
			sb.WriteString(`_bucket{le="`)
			sb.WriteString(le)
			sb.WriteString(`"} `)
			sb.WriteString(strconv.FormatUint(cumulative, 10))
			sb.WriteByte('\n')
		}
		sb.WriteString(def.Name)
		sb.WriteString("_count ")
		sb.WriteString(strconv.FormatUint(cumulative, 10))
		sb.WriteByte('\n')
	}

	return sb.String()
}
