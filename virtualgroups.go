package permgate

import "github.com/permgate/permgate/node"

// VirtualGroupTable maps a group name to a supplementary permission set that
// resolution layers on top of every source's own data for that group. Tables
// are immutable snapshots: build a new one and publish it wholesale through
// [Engine.SetVirtualGroups]; never mutate a table the engine already holds.
type VirtualGroupTable map[string]node.Set

// NewVirtualGroupTable builds an immutable table from name → node lists. The
// input is deep-copied.
func NewVirtualGroupTable(groups map[string][]string) VirtualGroupTable {
	t := make(VirtualGroupTable, len(groups))
	for name, nodes := range groups {
		t[name] = node.SetFromSlice(nodes)
	}
	return t
}

// Get returns the supplementary set for group. Unknown groups yield an empty
// set, never nil.
func (t VirtualGroupTable) Get(group string) node.Set {
	if t == nil {
		return node.Set{}
	}
	if s, ok := t[group]; ok {
		return s
	}
	return node.Set{}
}

// Clone deep-copies the table. Engine accessors return clones so callers can
// never alias the published snapshot.
func (t VirtualGroupTable) Clone() VirtualGroupTable {
	out := make(VirtualGroupTable, len(t))
	for name, s := range t {
		out[name] = s.Clone()
	}
	return out
}
