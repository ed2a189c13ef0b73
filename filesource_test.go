package permgate

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/permgate/permgate/node"
)

func newMemSource(t *testing.T) *FileSource {
	t.Helper()
	s, err := NewFileSource("file", "")
	if err != nil {
		t.Fatalf("NewFileSource failed: %v", err)
	}
	return s
}

func TestFileSourceBuiltInGroups(t *testing.T) {
	s := newMemSource(t)
	ctx := context.Background()

	op, err := s.GroupPermissions(ctx, GroupOP)
	if err != nil {
		t.Fatalf("GroupPermissions(OP): %v", err)
	}
	if !op.Contains("*") || op.Len() != 1 {
		t.Fatalf("OP = %v, want {*}", op.Sorted())
	}

	def, err := s.GroupPermissions(ctx, GroupDefault)
	if err != nil {
		t.Fatalf("GroupPermissions(Default): %v", err)
	}
	if def.Len() != 0 {
		t.Fatalf("Default = %v, want {}", def.Sorted())
	}
}

func TestFileSourceGettersAreTotal(t *testing.T) {
	s := newMemSource(t)
	ctx := context.Background()
	id := uuid.New()

	direct, err := s.DirectPermissions(ctx, id)
	if err != nil || direct == nil {
		t.Fatalf("DirectPermissions = (%v, %v), want empty set", direct, err)
	}
	perms, err := s.GroupPermissions(ctx, "nope")
	if err != nil || perms == nil {
		t.Fatalf("GroupPermissions = (%v, %v), want empty set", perms, err)
	}
}

func TestFileSourceMembershipFallback(t *testing.T) {
	s := newMemSource(t)
	ctx := context.Background()
	id := uuid.New()

	groups, err := s.Memberships(ctx, id)
	if err != nil {
		t.Fatalf("Memberships: %v", err)
	}
	if !reflect.DeepEqual(groups, []string{GroupDefault}) {
		t.Fatalf("unstored membership = %v, want [Default]", groups)
	}

	// Any explicit membership suppresses the fallback, even one that does
	// not include Default itself.
	if err := s.AddMembership(ctx, id, "VIP"); err != nil {
		t.Fatalf("AddMembership: %v", err)
	}
	groups, _ = s.Memberships(ctx, id)
	if !reflect.DeepEqual(groups, []string{"VIP"}) {
		t.Fatalf("stored membership = %v, want [VIP]", groups)
	}

	// Removing the last membership restores the fallback.
	if err := s.RemoveMembership(ctx, id, "VIP"); err != nil {
		t.Fatalf("RemoveMembership: %v", err)
	}
	groups, _ = s.Memberships(ctx, id)
	if !reflect.DeepEqual(groups, []string{GroupDefault}) {
		t.Fatalf("membership after removal = %v, want [Default]", groups)
	}
}

func TestFileSourceMembershipsSorted(t *testing.T) {
	s := newMemSource(t)
	ctx := context.Background()
	id := uuid.New()

	for _, g := range []string{"zeta", "alpha", "mid"} {
		if err := s.AddMembership(ctx, id, g); err != nil {
			t.Fatalf("AddMembership(%s): %v", g, err)
		}
	}
	groups, _ := s.Memberships(ctx, id)
	if !reflect.DeepEqual(groups, []string{"alpha", "mid", "zeta"}) {
		t.Fatalf("memberships = %v, want sorted", groups)
	}
}

func TestFileSourceEmptySetMutationsAreNoOps(t *testing.T) {
	s := newMemSource(t)
	ctx := context.Background()
	id := uuid.New()

	if err := s.AddDirectPermissions(ctx, id, node.NewSet()); err != nil {
		t.Fatalf("empty add: %v", err)
	}
	if err := s.RemoveDirectPermissions(ctx, id, nil); err != nil {
		t.Fatalf("nil remove: %v", err)
	}
	direct, _ := s.DirectPermissions(ctx, id)
	if direct.Len() != 0 {
		t.Fatalf("direct = %v after no-op mutations", direct.Sorted())
	}
}

func TestFileSourcePrunesEmptyContainers(t *testing.T) {
	s := newMemSource(t)
	ctx := context.Background()
	id := uuid.New()

	if err := s.AddDirectPermissions(ctx, id, node.NewSet("a", "b")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.RemoveDirectPermissions(ctx, id, node.NewSet("a", "b")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	s.mu.RLock()
	_, stray := s.direct[id]
	s.mu.RUnlock()
	if stray {
		t.Fatal("emptied direct container must be pruned from storage")
	}
}

func TestFileSourcePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	ctx := context.Background()
	id := uuid.New()

	s, err := NewFileSource("file", path)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	if err := s.AddDirectPermissions(ctx, id, node.NewSet("server.fly")); err != nil {
		t.Fatalf("add direct: %v", err)
	}
	if err := s.AddGroupPermissions(ctx, "VIP", node.NewSet("chat.color")); err != nil {
		t.Fatalf("add group: %v", err)
	}
	if err := s.AddMembership(ctx, id, "VIP"); err != nil {
		t.Fatalf("add membership: %v", err)
	}

	reloaded, err := NewFileSource("file", path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	direct, _ := reloaded.DirectPermissions(ctx, id)
	if !direct.Contains("server.fly") {
		t.Fatalf("reloaded direct = %v", direct.Sorted())
	}
	vip, _ := reloaded.GroupPermissions(ctx, "VIP")
	if !vip.Contains("chat.color") {
		t.Fatalf("reloaded VIP = %v", vip.Sorted())
	}
	groups, _ := reloaded.Memberships(ctx, id)
	if !reflect.DeepEqual(groups, []string{"VIP"}) {
		t.Fatalf("reloaded membership = %v", groups)
	}
}

func TestFileSourceReloadCanonicalizesReservedGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")

	doc := fileDocument{
		Users: map[string]fileUserRecord{},
		Groups: map[string]fileGroupRecord{
			GroupOP:      {Permissions: []string{"only.this"}},
			GroupDefault: {Permissions: []string{"sneaky.perm"}},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := NewFileSource("file", path)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	ctx := context.Background()

	op, _ := s.GroupPermissions(ctx, GroupOP)
	if op.Len() != 1 || !op.Contains("*") {
		t.Fatalf("OP after load = %v, want exactly {*}", op.Sorted())
	}
	def, _ := s.GroupPermissions(ctx, GroupDefault)
	if def.Len() != 0 {
		t.Fatalf("Default after load = %v, want {}", def.Sorted())
	}
}

func TestFileSourceMalformedDocumentFailsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewFileSource("file", path)
	if !errors.Is(err, ErrSourceLoad) {
		t.Fatalf("load error = %v, want ErrSourceLoad", err)
	}
}

func TestFileSourceMissingFileIsFreshStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s, err := NewFileSource("file", path)
	if err != nil {
		t.Fatalf("missing file must not fail load: %v", err)
	}
	op, _ := s.GroupPermissions(context.Background(), GroupOP)
	if !op.Contains("*") {
		t.Fatal("fresh store must still carry built-in groups")
	}
}

func TestFileSourceConcurrentAccess(t *testing.T) {
	s := newMemSource(t)
	ctx := context.Background()
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.AddDirectPermissions(ctx, id, node.NewSet("a.b"))
			_ = s.AddMembership(ctx, id, "VIP")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.DirectPermissions(ctx, id)
			_, _ = s.Memberships(ctx, id)
		}()
	}
	wg.Wait()

	direct, _ := s.DirectPermissions(ctx, id)
	if !direct.Contains("a.b") {
		t.Fatalf("direct = %v after concurrent writes", direct.Sorted())
	}
}
