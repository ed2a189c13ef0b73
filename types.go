package permgate

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/permgate/permgate/internal/events"
	internalmetrics "github.com/permgate/permgate/internal/metrics"
	"github.com/permgate/permgate/node"
)

// Identity is the subject being authorized. It is an opaque 128-bit value
// compared only by equality; uuid.Nil is invalid wherever an identity is
// required.
type Identity = uuid.UUID

// Reserved group names. Every [FileSource] reasserts their canonical content
// on load: OP holds exactly {"*"} and Default holds exactly {}. Custom
// content persisted under these names does not survive a reload.
const (
	GroupOP      = "OP"
	GroupDefault = "Default"
)

// Source is a pluggable permission backend. A source stores three relations:
// direct per-identity permissions, per-group permissions, and identity→group
// membership.
//
// Getter methods are total: unknown keys yield empty collections, never nil
// and never an error. Errors are reserved for infrastructure failure (for
// example a Redis round-trip); purely in-memory sources return nil errors
// throughout. Mutations receiving an empty set must be no-ops with no
// storage write. All methods must be safe for concurrent use.
//
// Memberships returns group names in a source-defined but documented order;
// resolution walks groups in exactly that order, so the order decides which
// of two conflicting groups wins. Both shipped sources return
// lexicographically sorted names.
type Source interface {
	// Name is a stable human-readable label used in diagnostics and event
	// payloads, never for identity comparison. Names must be unique within
	// one registry.
	Name() string

	DirectPermissions(ctx context.Context, id Identity) (node.Set, error)
	AddDirectPermissions(ctx context.Context, id Identity, nodes node.Set) error
	RemoveDirectPermissions(ctx context.Context, id Identity, nodes node.Set) error

	GroupPermissions(ctx context.Context, group string) (node.Set, error)
	AddGroupPermissions(ctx context.Context, group string, nodes node.Set) error
	RemoveGroupPermissions(ctx context.Context, group string, nodes node.Set) error

	Memberships(ctx context.Context, id Identity) ([]string, error)
	AddMembership(ctx context.Context, id Identity, group string) error
	RemoveMembership(ctx context.Context, id Identity, group string) error
}

// ChangeEvent is a structured record of one successful mutation.
type ChangeEvent = events.Event

// MutationKind discriminates the mutation operations that produce events.
type MutationKind = events.MutationKind

// SubjectKind says whether a change event's subject is an identity or group.
type SubjectKind = events.SubjectKind

const (
	// DirectAdded records direct permissions added to an identity.
	DirectAdded = events.DirectAdded
	// DirectRemoved records direct permissions removed from an identity.
	DirectRemoved = events.DirectRemoved
	// GroupPermissionsAdded records permissions added to a group.
	GroupPermissionsAdded = events.GroupPermissionsAdded
	// GroupPermissionsRemoved records permissions removed from a group.
	GroupPermissionsRemoved = events.GroupPermissionsRemoved
	// MembershipAdded records an identity joining a group.
	MembershipAdded = events.MembershipAdded
	// MembershipRemoved records an identity leaving a group.
	MembershipRemoved = events.MembershipRemoved

	// SubjectIdentity marks events whose subject is an identity.
	SubjectIdentity = events.SubjectIdentity
	// SubjectGroup marks events whose subject is a named group.
	SubjectGroup = events.SubjectGroup
)

// EventSink receives [ChangeEvent] values for every mutation kind.
type EventSink = events.Sink

// NoOpSink is an [EventSink] that silently discards all events.
type NoOpSink = events.NoOpSink

// ChannelSink is a buffered channel-based [EventSink]. Delivery is
// synchronous with the mutation, so a full buffer drops rather than blocks.
type ChannelSink = events.ChannelSink

// JSONWriterSink is an [EventSink] that writes one JSON object per line to an
// [io.Writer].
type JSONWriterSink = events.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricCheckGrant counts permission checks that resolved to grant.
	MetricCheckGrant = internalmetrics.MetricCheckGrant
	// MetricCheckDeny counts permission checks that resolved to deny.
	MetricCheckDeny = internalmetrics.MetricCheckDeny
	// MetricCheckDefaulted counts checks answered by the caller default.
	MetricCheckDefaulted = internalmetrics.MetricCheckDefaulted
	// MetricCheckRejected counts checks rejected for invalid arguments.
	MetricCheckRejected = internalmetrics.MetricCheckRejected
	// MetricDirectAdded counts direct-permission add mutations.
	MetricDirectAdded = internalmetrics.MetricDirectAdded
	// MetricDirectRemoved counts direct-permission remove mutations.
	MetricDirectRemoved = internalmetrics.MetricDirectRemoved
	// MetricGroupPermsAdded counts group-permission add mutations.
	MetricGroupPermsAdded = internalmetrics.MetricGroupPermsAdded
	// MetricGroupPermsRemoved counts group-permission remove mutations.
	MetricGroupPermsRemoved = internalmetrics.MetricGroupPermsRemoved
	// MetricMembershipAdded counts membership add mutations.
	MetricMembershipAdded = internalmetrics.MetricMembershipAdded
	// MetricMembershipRemoved counts membership remove mutations.
	MetricMembershipRemoved = internalmetrics.MetricMembershipRemoved
	// MetricMutationNoOp counts mutations suppressed as empty-set no-ops.
	MetricMutationNoOp = internalmetrics.MetricMutationNoOp
	// MetricEventsEmitted counts change events delivered to subscribers.
	MetricEventsEmitted = internalmetrics.MetricEventsEmitted
	// MetricSourceAdded counts sources registered after construction.
	MetricSourceAdded = internalmetrics.MetricSourceAdded
	// MetricSourceRemoved counts sources removed from the registry.
	MetricSourceRemoved = internalmetrics.MetricSourceRemoved
	// MetricResolveLatency is the resolution-latency histogram.
	MetricResolveLatency = internalmetrics.MetricResolveLatency
)

// Metrics holds atomic counters and an optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
