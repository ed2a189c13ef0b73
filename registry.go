package permgate

import (
	"sync"
	"sync/atomic"
)

// SourceRegistry is an ordered, mutation-safe collection of sources. Index 0
// is the primary source: every engine-level mutation routes there.
//
// The sequence is copy-on-write. Writers serialize on a mutex and publish a
// full replacement slice; readers load the current snapshot without locking
// and always observe a complete pre- or post-mutation sequence, never a
// partially updated one.
type SourceRegistry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]Source]
}

// NewSourceRegistry creates a registry holding the given sources in order.
// Duplicate names among the initial sources return ErrDuplicateSource.
func NewSourceRegistry(sources ...Source) (*SourceRegistry, error) {
	r := &SourceRegistry{}
	empty := make([]Source, 0)
	r.snapshot.Store(&empty)
	for _, s := range sources {
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends source to the end of the sequence. The first source ever added
// becomes primary and stays primary until removed.
func (r *SourceRegistry) Add(source Source) error {
	if source == nil {
		return ErrSourceNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	for _, s := range current {
		if s.Name() == source.Name() {
			return ErrDuplicateSource
		}
	}

	next := make([]Source, len(current)+1)
	copy(next, current)
	next[len(current)] = source
	r.snapshot.Store(&next)
	return nil
}

// Remove deletes the source with the given name, preserving the order of the
// rest. Removing the primary promotes the next source.
func (r *SourceRegistry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	idx := -1
	for i, s := range current {
		if s.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSourceNotFound
	}

	next := make([]Source, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	r.snapshot.Store(&next)
	return nil
}

// List returns the current sequence. The slice is a copy; the sources are
// shared.
func (r *SourceRegistry) List() []Source {
	current := *r.snapshot.Load()
	out := make([]Source, len(current))
	copy(out, current)
	return out
}

// Primary returns the source at index 0, or nil when the registry is empty.
func (r *SourceRegistry) Primary() Source {
	current := *r.snapshot.Load()
	if len(current) == 0 {
		return nil
	}
	return current[0]
}

// Len returns the number of registered sources.
func (r *SourceRegistry) Len() int {
	return len(*r.snapshot.Load())
}

// sources returns the live snapshot for lock-free traversal. Callers must
// not mutate it.
func (r *SourceRegistry) sources() []Source {
	return *r.snapshot.Load()
}
