package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// MutationKind discriminates the six mutation operations that produce events.
type MutationKind uint8

const (
	// DirectAdded records direct permissions added to an identity.
	DirectAdded MutationKind = iota
	// DirectRemoved records direct permissions removed from an identity.
	DirectRemoved
	// GroupPermissionsAdded records permissions added to a group.
	GroupPermissionsAdded
	// GroupPermissionsRemoved records permissions removed from a group.
	GroupPermissionsRemoved
	// MembershipAdded records an identity joining a group.
	MembershipAdded
	// MembershipRemoved records an identity leaving a group.
	MembershipRemoved

	// KindCount is the number of mutation kinds; used to size subscriber tables.
	KindCount
)

// MarshalText renders the kind label in JSON-encoded events.
func (k MutationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// String returns the wire label for the kind.
func (k MutationKind) String() string {
	switch k {
	case DirectAdded:
		return "direct_added"
	case DirectRemoved:
		return "direct_removed"
	case GroupPermissionsAdded:
		return "group_permissions_added"
	case GroupPermissionsRemoved:
		return "group_permissions_removed"
	case MembershipAdded:
		return "membership_added"
	case MembershipRemoved:
		return "membership_removed"
	default:
		return "unknown"
	}
}

// SubjectKind says whether the mutated subject is an identity or a group.
type SubjectKind uint8

const (
	// SubjectIdentity marks events whose subject is an identity.
	SubjectIdentity SubjectKind = iota
	// SubjectGroup marks events whose subject is a named group.
	SubjectGroup
)

func (s SubjectKind) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s SubjectKind) String() string {
	if s == SubjectGroup {
		return "group"
	}
	return "identity"
}

// Event is the canonical change record. One Event is emitted per successful
// non-no-op mutation issued through the engine's top-level mutation API.
//
// For identity-subject kinds, Identity carries the subject and Group (for
// membership kinds) carries the group delta. For group-subject kinds, Group
// carries the subject. Nodes carries the permission delta, sorted, for the
// four permission kinds; it is nil for membership kinds.
type Event struct {
	Timestamp time.Time    `json:"timestamp"`
	Kind      MutationKind `json:"kind"`
	Subject   SubjectKind  `json:"subject_kind"`
	Identity  string       `json:"identity,omitempty"`
	Group     string       `json:"group,omitempty"`
	Nodes     []string     `json:"nodes,omitempty"`
	Source    string       `json:"source,omitempty"`
}

// Sink receives emitted change events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops change events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes change events into a buffered channel. Because delivery
// is synchronous, a full channel drops the event rather than blocking the
// mutator.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	default:
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
