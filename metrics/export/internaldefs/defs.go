package internaldefs

import (
	permgate "github.com/permgate/permgate"
)

// CounterDef binds a metric ID to its exported name and help text.
type CounterDef struct {
	ID   permgate.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram metric ID to its exported name.
type HistogramDef struct {
	ID   permgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in metric ID order.
var CounterDefs = []CounterDef{
	{ID: permgate.MetricCheckGrant, Name: "permgate_check_grant_total", Help: "Permission checks that resolved to grant."},
	{ID: permgate.MetricCheckDeny, Name: "permgate_check_deny_total", Help: "Permission checks that resolved to deny."},
	{ID: permgate.MetricCheckDefaulted, Name: "permgate_check_defaulted_total", Help: "Permission checks answered by the caller default."},
	{ID: permgate.MetricCheckRejected, Name: "permgate_check_rejected_total", Help: "Permission checks rejected for invalid arguments."},
	{ID: permgate.MetricDirectAdded, Name: "permgate_direct_added_total", Help: "Direct-permission add mutations."},
	{ID: permgate.MetricDirectRemoved, Name: "permgate_direct_removed_total", Help: "Direct-permission remove mutations."},
	{ID: permgate.MetricGroupPermsAdded, Name: "permgate_group_permissions_added_total", Help: "Group-permission add mutations."},
	{ID: permgate.MetricGroupPermsRemoved, Name: "permgate_group_permissions_removed_total", Help: "Group-permission remove mutations."},
	{ID: permgate.MetricMembershipAdded, Name: "permgate_membership_added_total", Help: "Membership add mutations."},
	{ID: permgate.MetricMembershipRemoved, Name: "permgate_membership_removed_total", Help: "Membership remove mutations."},
	{ID: permgate.MetricMutationNoOp, Name: "permgate_mutation_noop_total", Help: "Mutations suppressed as empty-set no-ops."},
	{ID: permgate.MetricEventsEmitted, Name: "permgate_events_emitted_total", Help: "Change events delivered to subscribers."},
	{ID: permgate.MetricSourceAdded, Name: "permgate_source_added_total", Help: "Sources registered after construction."},
	{ID: permgate.MetricSourceRemoved, Name: "permgate_source_removed_total", Help: "Sources removed from the registry."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: permgate.MetricResolveLatency, Name: "permgate_resolve_latency", Help: "Permission resolution latency."},
}

// HistogramBoundSuffix names the 8 fixed bucket upper bounds, in order.
var HistogramBoundSuffix = [8]string{
	"1us", "5us", "10us", "50us", "100us", "500us", "1ms", "inf",
}

// NormalizeBuckets pads or truncates a snapshot bucket slice to the fixed
// bucket count so exporters can index unconditionally.
func NormalizeBuckets(buckets []uint64) []uint64 {
	out := make([]uint64, len(HistogramBoundSuffix))
	copy(out, buckets)
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form both
// exposition formats require.
func CumulativeBuckets(buckets []uint64) []uint64 {
	out := make([]uint64, len(buckets))
	var sum uint64
	for i, v := range buckets {
		sum += v
		out[i] = sum
	}
	return out
}
