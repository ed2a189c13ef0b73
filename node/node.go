package node

import (
	"sort"
	"strings"
)

// Result is the tri-state outcome of matching a permission set against a
// single requested node. Unspecified means the set holds no opinion and the
// caller should continue to the next layer (group, virtual table, source).
type Result uint8

const (
	// Unspecified means no entry in the set matched the requested node.
	Unspecified Result = iota
	// Grant means a positive entry matched.
	Grant
	// Deny means a negation entry matched.
	Deny
)

// String returns the result label used in diagnostics and event payloads.
func (r Result) String() string {
	switch r {
	case Grant:
		return "grant"
	case Deny:
		return "deny"
	default:
		return "unspecified"
	}
}

// Set is a set of permission node strings. The zero value is not usable;
// construct through [NewSet] or [SetFromSlice]. Sets are not safe for
// concurrent mutation; owners guard them with their own locks.
type Set map[string]struct{}

// NewSet builds a Set from the given nodes. Duplicates collapse.
func NewSet(nodes ...string) Set {
	s := make(Set, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	return s
}

// SetFromSlice builds a Set from a slice, typically one decoded from a
// persisted document.
func SetFromSlice(nodes []string) Set {
	return NewSet(nodes...)
}

// Contains reports whether n is in the set.
func (s Set) Contains(n string) bool {
	_, ok := s[n]
	return ok
}

// Len returns the number of nodes in the set.
func (s Set) Len() int {
	return len(s)
}

// Clone returns an independent copy. Cloning a nil set yields an empty set,
// never nil: callers always receive a usable value.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Sorted returns the nodes in lexicographic order. The result is a fresh
// slice safe for the caller to retain.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Add inserts every node from other and returns the nodes that were actually
// new. An empty delta signals a no-op mutation to the caller.
func (s Set) Add(other Set) Set {
	delta := Set{}
	for n := range other {
		if _, ok := s[n]; !ok {
			s[n] = struct{}{}
			delta[n] = struct{}{}
		}
	}
	return delta
}

// Remove deletes every node from other and returns the nodes that were
// actually present.
func (s Set) Remove(other Set) Set {
	delta := Set{}
	for n := range other {
		if _, ok := s[n]; ok {
			delete(s, n)
			delta[n] = struct{}{}
		}
	}
	return delta
}

// Evaluate matches the requested node id against the set.
//
// Precedence, first decisive result wins:
//
//  1. literal "*" → Grant
//  2. literal "-*" → Deny
//  3. exact id → Grant
//  4. exact "-"+id → Deny
//  5. dotted prefixes of id, shortest first: "prefix.*" → Grant,
//     else "-prefix.*" → Deny
//
// A '*' that is neither a standalone token nor a trailing ".*" segment is an
// ordinary character and only matches through the exact-comparison steps.
func Evaluate(nodes Set, id string) Result {
	if len(nodes) == 0 {
		return Unspecified
	}
	if nodes.Contains("*") {
		return Grant
	}
	if nodes.Contains("-*") {
		return Deny
	}
	if nodes.Contains(id) {
		return Grant
	}
	if nodes.Contains("-" + id) {
		return Deny
	}

	segments := strings.Split(id, ".")
	var prefix strings.Builder
	for i := 0; i < len(segments); i++ {
		if i > 0 {
			prefix.WriteByte('.')
		}
		prefix.WriteString(segments[i])
		wildcard := prefix.String() + ".*"
		if nodes.Contains(wildcard) {
			return Grant
		}
		if nodes.Contains("-" + wildcard) {
			return Deny
		}
	}

	return Unspecified
}
