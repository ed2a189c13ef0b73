package permgate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/permgate/permgate/node"
)

func TestBuildDefaultsToFileSource(t *testing.T) {
	engine, err := New().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	sources := engine.Sources()
	if len(sources) != 1 {
		t.Fatalf("source count = %d, want 1", len(sources))
	}
	if sources[0].Name() != "file" {
		t.Fatalf("default source name = %s, want file", sources[0].Name())
	}
	if _, ok := sources[0].(*FileSource); !ok {
		t.Fatalf("default source is %T, want *FileSource", sources[0])
	}
}

func TestBuildUsesStoreConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	cfg := defaultConfig()
	cfg.Store.FilePath = path
	cfg.Store.Label = "world"

	engine, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	if engine.Sources()[0].Name() != "world" {
		t.Fatalf("source name = %s, want world", engine.Sources()[0].Name())
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Label = ""
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("invalid config must fail Build")
	}
}

func TestBuildIsOneShot(t *testing.T) {
	b := New()
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("second Build err = %v, want ErrBuilderUsed", err)
	}
}

func TestBuildSuppliedSourcesSkipDefault(t *testing.T) {
	s := newMemSource(t)
	engine, err := New().WithSource(s).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	sources := engine.Sources()
	if len(sources) != 1 || sources[0] != Source(s) {
		t.Fatalf("sources = %v, want only the supplied one", sources)
	}
}

func TestBuildAppendsRedisAfterPrimary(t *testing.T) {
	_, client := newTestRedis(t)

	engine, err := New().WithSource(newMemSource(t)).WithRedis(client).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	sources := engine.Sources()
	if len(sources) != 2 {
		t.Fatalf("source count = %d, want 2", len(sources))
	}
	if _, ok := sources[1].(*RedisSource); !ok {
		t.Fatalf("second source is %T, want *RedisSource", sources[1])
	}
}

func TestBuildWiresEventSinks(t *testing.T) {
	sink := NewChannelSink(4)
	engine, err := New().WithEventSink(sink).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	if err := engine.AddUserPermissions(ctx, uuid.New(), node.NewSet("a")); err != nil {
		t.Fatalf("AddUserPermissions: %v", err)
	}

	select {
	case e := <-sink.Events():
		if e.Kind != DirectAdded {
			t.Fatalf("sink event kind = %v, want DirectAdded", e.Kind)
		}
		if e.Timestamp.IsZero() {
			t.Fatal("emitted event must carry a timestamp")
		}
	default:
		t.Fatal("sink received no event")
	}
}

func TestBuildDisabledEventsSuppressDelivery(t *testing.T) {
	cfg := defaultConfig()
	cfg.Events.Enabled = false

	sink := NewChannelSink(4)
	engine, err := New().WithConfig(cfg).WithEventSink(sink).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	if err := engine.AddUserPermissions(context.Background(), uuid.New(), node.NewSet("a")); err != nil {
		t.Fatalf("AddUserPermissions: %v", err)
	}
	select {
	case e := <-sink.Events():
		t.Fatalf("disabled events still delivered %+v", e)
	default:
	}
}

func TestBuildSeedsVirtualGroups(t *testing.T) {
	engine, err := New().
		WithVirtualGroups(map[string][]string{"Creative": {"tool"}}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	if !engine.VirtualGroups().Get("Creative").Contains("tool") {
		t.Fatal("builder-seeded virtual table missing entry")
	}
}
