package permgate

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/node"
)

// Engine resolves permission checks across an ordered registry of sources and
// routes mutations to the primary source. Construct through [Builder.Build];
// all methods are then safe for concurrent use.
//
// Resolution is not transactional across sources: each source presents an
// internally consistent snapshot under its own lock, but a concurrent
// mutation may become visible partway through a multi-source traversal.
// Callers must not assume read-your-writes atomicity spanning sources.
type Engine struct {
	config   Config
	registry *SourceRegistry
	virtual  atomic.Pointer[VirtualGroupTable]
	notifier *events.Notifier
	metrics  *Metrics
}

// Close releases engine resources. Present for API symmetry; event delivery
// is synchronous, so there is nothing to drain.
func (e *Engine) Close() {}

// MetricsSnapshot returns a deep copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// HasPermission decides whether id holds the permission node permNode.
//
// Per source, in registry order: the identity's direct permissions are
// evaluated first; then, for each of the identity's groups in the source's
// membership order, the group's own permissions and then the group's virtual
// table entry. The first grant or deny wins. When every source is silent the
// caller-supplied default is returned.
//
// Deny is the value false with a nil error. A non-nil error means the check
// could not be answered: ErrInvalidIdentity for the nil UUID, or a source's
// infrastructure failure. Errors are never used to signal an ordinary deny.
func (e *Engine) HasPermission(ctx context.Context, id Identity, permNode string, def bool) (bool, error) {
	if e == nil || e.registry == nil {
		return false, ErrEngineNotReady
	}
	if id == uuid.Nil {
		e.metricInc(MetricCheckRejected)
		return false, ErrInvalidIdentity
	}

	start := time.Now()
	virtual := e.virtualTable()

	for _, source := range e.registry.sources() {
		direct, err := source.DirectPermissions(ctx, id)
		if err != nil {
			return false, err
		}
		if r := node.Evaluate(direct, permNode); r != node.Unspecified {
			return e.finishCheck(r == node.Grant, false, start), nil
		}

		groups, err := source.Memberships(ctx, id)
		if err != nil {
			return false, err
		}
		for _, group := range groups {
			perms, err := source.GroupPermissions(ctx, group)
			if err != nil {
				return false, err
			}
			if r := node.Evaluate(perms, permNode); r != node.Unspecified {
				return e.finishCheck(r == node.Grant, false, start), nil
			}
			if r := node.Evaluate(virtual.Get(group), permNode); r != node.Unspecified {
				return e.finishCheck(r == node.Grant, false, start), nil
			}
		}
	}

	return e.finishCheck(def, true, start), nil
}

// Check is the two-argument form of [Engine.HasPermission], answering with
// the configured Resolution.DefaultDecision when every source is silent.
func (e *Engine) Check(ctx context.Context, id Identity, permNode string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	return e.HasPermission(ctx, id, permNode, e.config.Resolution.DefaultDecision)
}

func (e *Engine) finishCheck(decision, defaulted bool, start time.Time) bool {
	switch {
	case defaulted:
		e.metricInc(MetricCheckDefaulted)
	case decision:
		e.metricInc(MetricCheckGrant)
	default:
		e.metricInc(MetricCheckDeny)
	}
	if e.metrics != nil {
		e.metrics.Observe(MetricResolveLatency, time.Since(start))
	}
	return decision
}

// ResolvedGroups returns the union of every source's non-empty membership
// result for id, sorted and deduplicated. A source with no membership data
// contributes nothing; only a source's own Memberships implementation may
// supply a fallback group (FileSource injects Default that way).
func (e *Engine) ResolvedGroups(ctx context.Context, id Identity) ([]string, error) {
	if e == nil || e.registry == nil {
		return nil, ErrEngineNotReady
	}
	if id == uuid.Nil {
		return nil, ErrInvalidIdentity
	}

	seen := make(map[string]struct{})
	for _, source := range e.registry.sources() {
		groups, err := source.Memberships(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			seen[g] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

// DirectPermissions returns id's direct permissions from the primary source.
func (e *Engine) DirectPermissions(ctx context.Context, id Identity) (node.Set, error) {
	primary, err := e.requirePrimary()
	if err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, ErrInvalidIdentity
	}
	return primary.DirectPermissions(ctx, id)
}

// GroupPermissions returns group's permissions from the primary source.
func (e *Engine) GroupPermissions(ctx context.Context, group string) (node.Set, error) {
	primary, err := e.requirePrimary()
	if err != nil {
		return nil, err
	}
	if group == "" {
		return nil, ErrInvalidGroup
	}
	return primary.GroupPermissions(ctx, group)
}

// Memberships returns id's groups from the primary source, in the source's
// documented order.
func (e *Engine) Memberships(ctx context.Context, id Identity) ([]string, error) {
	primary, err := e.requirePrimary()
	if err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, ErrInvalidIdentity
	}
	return primary.Memberships(ctx, id)
}

// DirectPermissionsBySource returns id's direct permissions from every
// registered source, keyed by source name. Diagnostics surface: the host's
// permission-listing command shows per-source data with this.
func (e *Engine) DirectPermissionsBySource(ctx context.Context, id Identity) (map[string]node.Set, error) {
	if e == nil || e.registry == nil {
		return nil, ErrEngineNotReady
	}
	if id == uuid.Nil {
		return nil, ErrInvalidIdentity
	}
	out := make(map[string]node.Set)
	for _, source := range e.registry.sources() {
		set, err := source.DirectPermissions(ctx, id)
		if err != nil {
			return nil, err
		}
		out[source.Name()] = set
	}
	return out, nil
}

// GroupPermissionsBySource returns group's permissions from every registered
// source, keyed by source name.
func (e *Engine) GroupPermissionsBySource(ctx context.Context, group string) (map[string]node.Set, error) {
	if e == nil || e.registry == nil {
		return nil, ErrEngineNotReady
	}
	if group == "" {
		return nil, ErrInvalidGroup
	}
	out := make(map[string]node.Set)
	for _, source := range e.registry.sources() {
		set, err := source.GroupPermissions(ctx, group)
		if err != nil {
			return nil, err
		}
		out[source.Name()] = set
	}
	return out, nil
}

// AddUserPermissions adds direct permissions to id on the primary source and
// emits one DirectAdded event. An empty set is a silent no-op.
func (e *Engine) AddUserPermissions(ctx context.Context, id Identity, nodes node.Set) error {
	primary, err := e.requirePrimary()
	if err != nil {
		return err
	}
	if id == uuid.Nil {
		return ErrInvalidIdentity
	}
	if nodes.Len() == 0 {
		e.metricInc(MetricMutationNoOp)
		return nil
	}
	if err := primary.AddDirectPermissions(ctx, id, nodes); err != nil {
		return err
	}
	e.metricInc(MetricDirectAdded)
	e.emit(ChangeEvent{
		Kind:     DirectAdded,
		Subject:  SubjectIdentity,
		Identity: id.String(),
		Nodes:    nodes.Sorted(),
		Source:   primary.Name(),
	})
	return nil
}

// RemoveUserPermissions removes direct permissions from id on the primary
// source and emits one DirectRemoved event. An empty set is a silent no-op.
func (e *Engine) RemoveUserPermissions(ctx context.Context, id Identity, nodes node.Set) error {
	primary, err := e.requirePrimary()
	if err != nil {
		return err
	}
	if id == uuid.Nil {
		return ErrInvalidIdentity
	}
	if nodes.Len() == 0 {
		e.metricInc(MetricMutationNoOp)
		return nil
	}
	if err := primary.RemoveDirectPermissions(ctx, id, nodes); err != nil {
		return err
	}
	e.metricInc(MetricDirectRemoved)
	e.emit(ChangeEvent{
		Kind:     DirectRemoved,
		Subject:  SubjectIdentity,
		Identity: id.String(),
		Nodes:    nodes.Sorted(),
		Source:   primary.Name(),
	})
	return nil
}

// AddGroupPermissions adds permissions to group on the primary source and
// emits one GroupPermissionsAdded event. An empty set is a silent no-op.
func (e *Engine) AddGroupPermissions(ctx context.Context, group string, nodes node.Set) error {
	primary, err := e.requirePrimary()
	if err != nil {
		return err
	}
	if group == "" {
		return ErrInvalidGroup
	}
	if nodes.Len() == 0 {
		e.metricInc(MetricMutationNoOp)
		return nil
	}
	if err := primary.AddGroupPermissions(ctx, group, nodes); err != nil {
		return err
	}
	e.metricInc(MetricGroupPermsAdded)
	e.emit(ChangeEvent{
		Kind:    GroupPermissionsAdded,
		Subject: SubjectGroup,
		Group:   group,
		Nodes:   nodes.Sorted(),
		Source:  primary.Name(),
	})
	return nil
}

// RemoveGroupPermissions removes permissions from group on the primary source
// and emits one GroupPermissionsRemoved event. An empty set is a silent no-op.
func (e *Engine) RemoveGroupPermissions(ctx context.Context, group string, nodes node.Set) error {
	primary, err := e.requirePrimary()
	if err != nil {
		return err
	}
	if group == "" {
		return ErrInvalidGroup
	}
	if nodes.Len() == 0 {
		e.metricInc(MetricMutationNoOp)
		return nil
	}
	if err := primary.RemoveGroupPermissions(ctx, group, nodes); err != nil {
		return err
	}
	e.metricInc(MetricGroupPermsRemoved)
	e.emit(ChangeEvent{
		Kind:    GroupPermissionsRemoved,
		Subject: SubjectGroup,
		Group:   group,
		Nodes:   nodes.Sorted(),
		Source:  primary.Name(),
	})
	return nil
}

// AddUserToGroup adds id to group on the primary source and emits one
// MembershipAdded event.
func (e *Engine) AddUserToGroup(ctx context.Context, id Identity, group string) error {
	primary, err := e.requirePrimary()
	if err != nil {
		return err
	}
	if id == uuid.Nil {
		return ErrInvalidIdentity
	}
	if group == "" {
		return ErrInvalidGroup
	}
	if err := primary.AddMembership(ctx, id, group); err != nil {
		return err
	}
	e.metricInc(MetricMembershipAdded)
	e.emit(ChangeEvent{
		Kind:     MembershipAdded,
		Subject:  SubjectIdentity,
		Identity: id.String(),
		Group:    group,
		Source:   primary.Name(),
	})
	return nil
}

// RemoveUserFromGroup removes id from group on the primary source and emits
// one MembershipRemoved event.
func (e *Engine) RemoveUserFromGroup(ctx context.Context, id Identity, group string) error {
	primary, err := e.requirePrimary()
	if err != nil {
		return err
	}
	if id == uuid.Nil {
		return ErrInvalidIdentity
	}
	if group == "" {
		return ErrInvalidGroup
	}
	if err := primary.RemoveMembership(ctx, id, group); err != nil {
		return err
	}
	e.metricInc(MetricMembershipRemoved)
	e.emit(ChangeEvent{
		Kind:     MembershipRemoved,
		Subject:  SubjectIdentity,
		Identity: id.String(),
		Group:    group,
		Source:   primary.Name(),
	})
	return nil
}

// AddSource appends a source to the registry. The first source becomes
// primary.
func (e *Engine) AddSource(source Source) error {
	if e == nil || e.registry == nil {
		return ErrEngineNotReady
	}
	if err := e.registry.Add(source); err != nil {
		return err
	}
	e.metricInc(MetricSourceAdded)
	return nil
}

// RemoveSource removes the source with the given name.
func (e *Engine) RemoveSource(name string) error {
	if e == nil || e.registry == nil {
		return ErrEngineNotReady
	}
	if err := e.registry.Remove(name); err != nil {
		return err
	}
	e.metricInc(MetricSourceRemoved)
	return nil
}

// Sources returns the registered sources in resolution order.
func (e *Engine) Sources() []Source {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.List()
}

// SetVirtualGroups replaces the whole virtual group table. The swap is
// atomic: in-flight resolutions keep the table they loaded at entry.
func (e *Engine) SetVirtualGroups(groups map[string][]string) {
	if e == nil {
		return
	}
	table := NewVirtualGroupTable(groups)
	e.virtual.Store(&table)
}

// VirtualGroups returns a deep copy of the current virtual group table.
func (e *Engine) VirtualGroups() VirtualGroupTable {
	return e.virtualTable().Clone()
}

func (e *Engine) virtualTable() VirtualGroupTable {
	if e == nil {
		return nil
	}
	if t := e.virtual.Load(); t != nil {
		return *t
	}
	return nil
}

// Subscribe registers h for one mutation kind. Handlers run synchronously on
// the mutating goroutine before the mutation call returns.
func (e *Engine) Subscribe(kind MutationKind, h func(ChangeEvent)) {
	if e == nil || e.notifier == nil {
		return
	}
	e.notifier.Subscribe(kind, h)
}

// SubscribeAll registers h for every mutation kind.
func (e *Engine) SubscribeAll(h func(ChangeEvent)) {
	if e == nil || e.notifier == nil {
		return
	}
	e.notifier.SubscribeAll(h)
}

func (e *Engine) requirePrimary() (Source, error) {
	if e == nil || e.registry == nil {
		return nil, ErrEngineNotReady
	}
	primary := e.registry.Primary()
	if primary == nil {
		return nil, ErrNoSources
	}
	return primary, nil
}

func (e *Engine) emit(event ChangeEvent) {
	if e.notifier == nil || !e.config.Events.Enabled {
		return
	}
	event.Timestamp = time.Now().UTC()
	e.notifier.Emit(event)
	e.metricInc(MetricEventsEmitted)
}
