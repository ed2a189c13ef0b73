// Package permgate provides a deterministic authorization resolution engine:
// given an identity, an ordered set of pluggable permission sources, and a
// dotted permission node, it decides grant or deny with well-defined
// precedence over wildcards, negations, groups, and virtual groups.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// permgate is the public surface. It exposes [Engine], [Builder], [Config],
// the [Source] interface, the shipped [FileSource] and [RedisSource]
// implementations, and value types. Matching lives in the node subpackage;
// event dispatch and metric storage live under internal/ and are reached
// through type aliases.
//
// # What this package must NOT do
//
//   - Parse commands, translate strings, or speak any network protocol.
//     The host surface owns those.
//   - Expose Redis clients or persistence encodings in its public API beyond
//     the documented JSON document format of [FileSource].
//   - Import any sub-package that re-imports permgate (no import cycles).
//
// # Performance contract
//
// HasPermission is the hot path. Against in-memory sources it must complete
// without allocation beyond transient membership slices and without blocking
// beyond each source's own reader lock. Registry traversal is lock-free.
package permgate
