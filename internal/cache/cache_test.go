package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/trustlens/trustlens/internal/store"
)

func TestGetPutRoundTrip(t *testing.T) {
	t.Parallel()

	c := New(store.NewMemoryStore(), 10)
	ctx := context.Background()

	c.Put(ctx, "k", []byte("v"), time.Minute)

	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("Get = %q, %v; want v, true", got, ok)
	}
}

func TestExpiredEntryNeverReturned(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	c := New(mem, 10)
	ctx := context.Background()

	c.Put(ctx, "k", []byte("v"), -time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expired entry must not be returned")
	}

	// First access deletes from both layers.
	if n, _ := mem.Count(ctx); n != 0 {
		t.Fatalf("expired entry should be deleted from the durable layer, count=%d", n)
	}
}

func TestDurableHitRepopulatesFastLayer(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	ctx := context.Background()

	first := New(mem, 10)
	first.Put(ctx, "k", []byte("v"), time.Minute)

	// Fresh cache over the same durable store: fast layer starts cold.
	second := New(mem, 10)
	got, ok := second.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("durable hit failed: %q, %v", got, ok)
	}

	stats := second.Stats(ctx)
	if stats.FastEntries != 1 {
		t.Fatalf("fast layer should be repopulated, entries=%d", stats.FastEntries)
	}
}

func TestFIFOEviction(t *testing.T) {
	t.Parallel()

	c := New(store.NewMemoryStore(), 3)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		c.Put(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}

	stats := c.Stats(ctx)
	if stats.FastEntries != 3 {
		t.Fatalf("fast layer size %d, want 3", stats.FastEntries)
	}
	if stats.Evictions != 1 {
		t.Fatalf("evictions %d, want 1 (oldest inserted)", stats.Evictions)
	}
}

func TestInvalidateRemovesBothLayers(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	c := New(mem, 10)
	ctx := context.Background()

	c.Put(ctx, "k", []byte("v"), time.Minute)
	c.Invalidate(ctx, "k")

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("invalidated entry returned")
	}
	if n, _ := mem.Count(ctx); n != 0 {
		t.Fatalf("durable layer still holds %d entries", n)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	c := New(mem, 10)
	ctx := context.Background()

	c.Put(ctx, "fresh", []byte("v"), time.Minute)
	c.Put(ctx, "stale1", []byte("v"), -time.Minute)
	c.Put(ctx, "stale2", []byte("v"), -time.Second)

	removed := c.Sweep(ctx)
	if removed != 2 {
		t.Fatalf("swept %d entries, want 2", removed)
	}
	if n, _ := mem.Count(ctx); n != 1 {
		t.Fatalf("durable layer holds %d entries after sweep, want 1", n)
	}
	if _, ok := c.Get(ctx, "fresh"); !ok {
		t.Fatal("sweep removed an unexpired entry")
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	t.Parallel()

	c := New(store.NewMemoryStore(), 8)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			c.Put(ctx, fmt.Sprintf("k%d", i%16), []byte("v"), time.Minute)
		}
	}()

	for i := 0; i < 200; i++ {
		if v, ok := c.Get(ctx, fmt.Sprintf("k%d", i%16)); ok && string(v) != "v" {
			t.Fatalf("torn read: %q", v)
		}
	}
	<-done
}
