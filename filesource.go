package permgate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/permgate/permgate/node"
)

// fileDocument is the persisted JSON shape: per-identity records carrying
// direct permissions and group names, and per-group records carrying
// permissions.
type fileDocument struct {
	Users  map[string]fileUserRecord  `json:"users"`
	Groups map[string]fileGroupRecord `json:"groups"`
}

type fileUserRecord struct {
	Permissions []string `json:"permissions"`
	Groups      []string `json:"groups"`
}

type fileGroupRecord struct {
	Permissions []string `json:"permissions"`
}

// FileSource is the reference [Source]: in-memory maps guarded by one
// reader/writer lock, optionally persisted to a JSON document. Writers apply
// the change and rewrite the document before releasing the lock, so
// persistence is transactionally coupled to the mutation.
//
// Two built-in groups always exist: OP holding {"*"} and Default holding {}.
// Load reasserts both by overwrite after parsing, discarding whatever a
// persisted document held under those names. An identity with no stored
// membership resolves to the single group Default; an identity with any
// explicit membership never receives that fallback.
type FileSource struct {
	name string
	path string

	mu      sync.RWMutex
	direct  map[Identity]node.Set
	groups  map[string]node.Set
	members map[Identity]map[string]struct{}
}

// NewFileSource creates a FileSource labeled name. When path is non-empty the
// document is loaded immediately; a missing file is a fresh store, but an
// unreadable or malformed one returns an error wrapping [ErrSourceLoad]
// rather than coming up silently empty.
func NewFileSource(name, path string) (*FileSource, error) {
	if name == "" {
		name = "file"
	}
	s := &FileSource{
		name:    name,
		path:    path,
		direct:  make(map[Identity]node.Set),
		groups:  make(map[string]node.Set),
		members: make(map[Identity]map[string]struct{}),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Name implements [Source].
func (s *FileSource) Name() string {
	return s.name
}

// Load re-reads the persisted document, replacing all in-memory state, then
// reasserts the canonical OP and Default groups so they always win. With no
// path configured it resets to the built-in groups only.
func (s *FileSource) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	direct := make(map[Identity]node.Set)
	groups := make(map[string]node.Set)
	members := make(map[Identity]map[string]struct{})

	if s.path != "" {
		data, err := os.ReadFile(s.path)
		switch {
		case os.IsNotExist(err):
			// First boot: nothing persisted yet.
		case err != nil:
			return fmt.Errorf("%w: read %s: %v", ErrSourceLoad, s.path, err)
		default:
			var doc fileDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("%w: parse %s: %v", ErrSourceLoad, s.path, err)
			}
			for rawID, rec := range doc.Users {
				id, err := uuid.Parse(rawID)
				if err != nil {
					return fmt.Errorf("%w: user key %q: %v", ErrSourceLoad, rawID, err)
				}
				if len(rec.Permissions) > 0 {
					direct[id] = node.SetFromSlice(rec.Permissions)
				}
				if len(rec.Groups) > 0 {
					m := make(map[string]struct{}, len(rec.Groups))
					for _, g := range rec.Groups {
						m[g] = struct{}{}
					}
					members[id] = m
				}
			}
			for name, rec := range doc.Groups {
				groups[name] = node.SetFromSlice(rec.Permissions)
			}
		}
	}

	// Canonicalization: reserved groups overwrite whatever was loaded.
	groups[GroupOP] = node.NewSet("*")
	groups[GroupDefault] = node.NewSet()

	s.direct = direct
	s.groups = groups
	s.members = members
	return nil
}

// DirectPermissions implements [Source]. The returned set is a copy.
func (s *FileSource) DirectPermissions(_ context.Context, id Identity) (node.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direct[id].Clone(), nil
}

// AddDirectPermissions implements [Source]. An empty set is a no-op.
func (s *FileSource) AddDirectPermissions(_ context.Context, id Identity, nodes node.Set) error {
	if nodes.Len() == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.direct[id]
	if !ok {
		set = node.NewSet()
		s.direct[id] = set
	}
	if set.Add(nodes).Len() == 0 {
		return nil
	}
	return s.persistLocked()
}

// RemoveDirectPermissions implements [Source]. An empty set is a no-op; an
// identity whose last direct permission is removed is pruned from storage.
func (s *FileSource) RemoveDirectPermissions(_ context.Context, id Identity, nodes node.Set) error {
	if nodes.Len() == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.direct[id]
	if !ok {
		return nil
	}
	if set.Remove(nodes).Len() == 0 {
		return nil
	}
	if set.Len() == 0 {
		delete(s.direct, id)
	}
	return s.persistLocked()
}

// GroupPermissions implements [Source]. The returned set is a copy; unknown
// groups yield an empty set.
func (s *FileSource) GroupPermissions(_ context.Context, group string) (node.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups[group].Clone(), nil
}

// AddGroupPermissions implements [Source]. The group record is created on
// first mutation.
func (s *FileSource) AddGroupPermissions(_ context.Context, group string, nodes node.Set) error {
	if nodes.Len() == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.groups[group]
	if !ok {
		set = node.NewSet()
		s.groups[group] = set
	}
	if set.Add(nodes).Len() == 0 {
		return nil
	}
	return s.persistLocked()
}

// RemoveGroupPermissions implements [Source]. Emptied groups are pruned
// except the reserved OP and Default records, which always exist.
func (s *FileSource) RemoveGroupPermissions(_ context.Context, group string, nodes node.Set) error {
	if nodes.Len() == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.groups[group]
	if !ok {
		return nil
	}
	if set.Remove(nodes).Len() == 0 {
		return nil
	}
	if set.Len() == 0 && group != GroupOP && group != GroupDefault {
		delete(s.groups, group)
	}
	return s.persistLocked()
}

// Memberships implements [Source]. Stored memberships return sorted; an
// identity with none stored falls back to {Default}.
func (s *FileSource) Memberships(_ context.Context, id Identity) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.members[id]
	if len(stored) == 0 {
		return []string{GroupDefault}, nil
	}
	out := make([]string, 0, len(stored))
	for g := range stored {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

// AddMembership implements [Source].
func (s *FileSource) AddMembership(_ context.Context, id Identity, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		m = make(map[string]struct{}, 1)
		s.members[id] = m
	}
	if _, ok := m[group]; ok {
		return nil
	}
	m[group] = struct{}{}
	return s.persistLocked()
}

// RemoveMembership implements [Source]. An identity whose last membership is
// removed is pruned and reverts to the Default fallback.
func (s *FileSource) RemoveMembership(_ context.Context, id Identity, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return nil
	}
	if _, ok := m[group]; !ok {
		return nil
	}
	delete(m, group)
	if len(m) == 0 {
		delete(s.members, id)
	}
	return s.persistLocked()
}

// persistLocked rewrites the document. Callers hold the write lock. The
// write goes through a temp file and rename so readers of the path never see
// a torn document.
func (s *FileSource) persistLocked() error {
	if s.path == "" {
		return nil
	}

	doc := fileDocument{
		Users:  make(map[string]fileUserRecord),
		Groups: make(map[string]fileGroupRecord, len(s.groups)),
	}
	for id, set := range s.direct {
		rec := doc.Users[id.String()]
		rec.Permissions = set.Sorted()
		doc.Users[id.String()] = rec
	}
	for id, m := range s.members {
		rec := doc.Users[id.String()]
		rec.Groups = make([]string, 0, len(m))
		for g := range m {
			rec.Groups = append(rec.Groups, g)
		}
		sort.Strings(rec.Groups)
		doc.Users[id.String()] = rec
	}
	for name, set := range s.groups {
		doc.Groups[name] = fileGroupRecord{Permissions: set.Sorted()}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode permission document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".permgate-*")
	if err != nil {
		return fmt.Errorf("persist permission document: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persist permission document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persist permission document: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persist permission document: %w", err)
	}
	return nil
}
