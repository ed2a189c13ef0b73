// Package prometheus provides Prometheus collectors for permgate metrics.
//
// [NewPrometheusExporter] accepts a [permgate.Engine] and exposes an
// [net/http.Handler] that renders all counters and the resolution-latency
// histogram in Prometheus text exposition format. Counter names are prefixed
// permgate_*_total; the histogram is permgate_resolve_latency.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the
//     Handler.
//   - Mutate engine state.
package prometheus
