// Package events implements change notification for permission mutations.
//
// # Components
//
//   - [Event] — a single tagged record describing one successful mutation.
//   - [Notifier] — per-kind subscriber registry with synchronous delivery.
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//
// Delivery is synchronous: Emit runs every subscriber on the mutating
// goroutine before the mutation call returns. Ordering across concurrent
// mutations is per-call, not globally sequenced.
//
// # Architecture boundaries
//
// This package owns subscriber bookkeeping and delivery. It does NOT decide
// which mutations produce events — that responsibility belongs to the Engine,
// which emits only for non-no-op mutations routed through the primary source.
//
// # What this package must NOT do
//
//   - Emit for reads, no-op mutations, or direct source mutations.
//   - Import permgate or any sibling internal package.
//   - Spawn goroutines; consumers needing async behavior buffer in their Sink.
package events
