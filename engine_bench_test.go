package permgate

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/permgate/permgate/node"
)

func benchEngine(b *testing.B, seed func(ctx context.Context, e *Engine, id Identity)) (*Engine, Identity) {
	b.Helper()

	s, err := NewFileSource("file", "")
	if err != nil {
		b.Fatalf("NewFileSource: %v", err)
	}
	engine, err := New().WithSource(s).WithMetricsEnabled(true).Build()
	if err != nil {
		b.Fatalf("Build: %v", err)
	}
	b.Cleanup(engine.Close)

	id := uuid.New()
	seed(context.Background(), engine, id)
	return engine, id
}

func BenchmarkHasPermissionDirectHit(b *testing.B) {
	engine, id := benchEngine(b, func(ctx context.Context, e *Engine, id Identity) {
		if err := e.AddUserPermissions(ctx, id, node.NewSet("server.fly")); err != nil {
			b.Fatalf("seed: %v", err)
		}
	})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.HasPermission(ctx, id, "server.fly", false)
	}
}

func BenchmarkHasPermissionGroupWildcard(b *testing.B) {
	engine, id := benchEngine(b, func(ctx context.Context, e *Engine, id Identity) {
		for g := 0; g < 8; g++ {
			name := fmt.Sprintf("group-%d", g)
			if err := e.AddUserToGroup(ctx, id, name); err != nil {
				b.Fatalf("seed membership: %v", err)
			}
			if err := e.AddGroupPermissions(ctx, name, node.NewSet(fmt.Sprintf("area.%d.*", g))); err != nil {
				b.Fatalf("seed group: %v", err)
			}
		}
	})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.HasPermission(ctx, id, "area.7.deep.action", false)
	}
}

func BenchmarkHasPermissionDefaulted(b *testing.B) {
	engine, id := benchEngine(b, func(context.Context, *Engine, Identity) {})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.HasPermission(ctx, id, "never.granted", false)
	}
}

func BenchmarkHasPermissionParallel(b *testing.B) {
	engine, id := benchEngine(b, func(ctx context.Context, e *Engine, id Identity) {
		if err := e.AddUserToGroup(ctx, id, "VIP"); err != nil {
			b.Fatalf("seed membership: %v", err)
		}
		if err := e.AddGroupPermissions(ctx, "VIP", node.NewSet("chat.*")); err != nil {
			b.Fatalf("seed group: %v", err)
		}
	})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = engine.HasPermission(ctx, id, "chat.color", false)
		}
	})
}

func BenchmarkEvaluateDeepPrefix(b *testing.B) {
	nodes := node.NewSet("a.b.c.d.*", "-a.b.c.d.e.secret", "other.perm")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = node.Evaluate(nodes, "a.b.c.d.e.f")
	}
}
