package memory_test

import (
	"testing"

	"github.com/glancehq/glance-relay/internal/adapters/storage/memory"
	"github.com/glancehq/glance-relay/internal/domain"
)

func TestCreateGetDelete(t *testing.T) {
	store := memory.NewContextStore()

	id := domain.ConnectionID("conn-1")
	created := store.Create(id)
	if created == nil {
		t.Fatalf("expected context, got nil")
	}

	got, ok := store.Get(id)
	if !ok {
		t.Fatalf("expected context for %s", id)
	}
	if got != created {
		t.Fatalf("expected same context instance")
	}

	store.Delete(id)
	if _, ok := store.Get(id); ok {
		t.Fatalf("expected context gone after delete")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := memory.NewContextStore()

	id := domain.ConnectionID("conn-1")
	store.Create(id)

	store.Delete(id)
	store.Delete(id) // must not panic or affect other entries
	store.Delete(domain.ConnectionID("never-existed"))

	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", store.Len())
	}
}

func TestContextsAreIsolatedPerConnection(t *testing.T) {
	store := memory.NewContextStore()

	a := store.Create(domain.ConnectionID("a"))
	b := store.Create(domain.ConnectionID("b"))

	a.AppendTurn(domain.RoleUser, "hello from a")

	if len(b.History) != 0 {
		t.Fatalf("expected b untouched, got %d turns", len(b.History))
	}

	store.Delete(domain.ConnectionID("a"))
	if _, ok := store.Get(domain.ConnectionID("b")); !ok {
		t.Fatalf("deleting a must not remove b")
	}
}

func TestHistoryTrimsFIFO(t *testing.T) {
	store := memory.NewContextStore()
	ctx := store.Create(domain.ConnectionID("conn-1"))

	for i := 0; i < 15; i++ {
		ctx.AppendTurn(domain.RoleUser, string(rune('a'+i)))
	}

	if len(ctx.History) != domain.MaxHistoryTurns {
		t.Fatalf("expected %d turns, got %d", domain.MaxHistoryTurns, len(ctx.History))
	}
	// Oldest entries evicted: first remaining turn is the 6th appended.
	if ctx.History[0].Content != "f" {
		t.Fatalf("expected oldest surviving turn f, got %q", ctx.History[0].Content)
	}
	if ctx.History[len(ctx.History)-1].Content != "o" {
		t.Fatalf("expected newest turn o, got %q", ctx.History[len(ctx.History)-1].Content)
	}
}
