package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// backends returns a fresh instance of every store implementation that can
// run without external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	mem := NewMemoryStore()
	t.Cleanup(func() { mem.Close() })

	return map[string]Store{"sqlite": sqlite, "memory": mem}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key(NamespaceTrustAnalysis, "abc")

			if err := s.Put(ctx, key, []byte("payload"), time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			entry, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if entry == nil {
				t.Fatal("entry missing after Put")
			}
			if string(entry.Value) != "payload" {
				t.Errorf("value %q, want payload", entry.Value)
			}
			if entry.ExpiresAt.Before(time.Now()) {
				t.Errorf("expiry %v already in the past", entry.ExpiresAt)
			}
		})
	}
}

func TestGetAbsentKey(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			entry, err := s.Get(context.Background(), Key(NamespaceCredibility, "missing"))
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if entry != nil {
				t.Fatalf("absent key returned entry %+v, want nil", entry)
			}
		})
	}
}

func TestPutOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key(NamespaceMedia, "m1")

			if err := s.Put(ctx, key, []byte("v1"), time.Hour); err != nil {
				t.Fatalf("first Put failed: %v", err)
			}
			if err := s.Put(ctx, key, []byte("v2"), time.Hour); err != nil {
				t.Fatalf("second Put failed: %v", err)
			}

			entry, err := s.Get(ctx, key)
			if err != nil || entry == nil {
				t.Fatalf("Get after overwrite: entry=%v err=%v", entry, err)
			}
			if string(entry.Value) != "v2" {
				t.Errorf("value %q, want v2", entry.Value)
			}

			count, err := s.Count(ctx)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if count != 1 {
				t.Errorf("count %d after overwrite, want 1", count)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key(NamespaceDuplication, "d1")

			if err := s.Put(ctx, key, []byte("v"), time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if entry, _ := s.Get(ctx, key); entry != nil {
				t.Fatal("entry survived Delete")
			}

			// Deleting an absent key is not an error.
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("second Delete failed: %v", err)
			}
		})
	}
}

func TestScanExpired(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.Put(ctx, "stale-1", []byte("v"), -time.Minute); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := s.Put(ctx, "stale-2", []byte("v"), -time.Minute); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := s.Put(ctx, "fresh", []byte("v"), time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			keys, err := s.ScanExpired(ctx, time.Now())
			if err != nil {
				t.Fatalf("ScanExpired failed: %v", err)
			}

			expired := make(map[string]bool, len(keys))
			for _, k := range keys {
				expired[k] = true
			}
			if !expired["stale-1"] || !expired["stale-2"] {
				t.Errorf("expired keys %v, want stale-1 and stale-2", keys)
			}
			if expired["fresh"] {
				t.Errorf("fresh key reported expired: %v", keys)
			}
		})
	}
}

func TestCount(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, key := range []string{"a", "b", "c"} {
				if err := s.Put(ctx, key, []byte("v"), time.Hour); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			count, err := s.Count(ctx)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if count != 3 {
				t.Errorf("count %d, want 3", count)
			}
		})
	}
}

func TestEntryExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()

	e := Entry{ExpiresAt: now.Add(-time.Second)}
	if !e.Expired(now) {
		t.Error("past expiry should report expired")
	}

	e = Entry{ExpiresAt: now.Add(time.Second)}
	if e.Expired(now) {
		t.Error("future expiry should not report expired")
	}

	e = Entry{} // zero expiry means no expiry
	if e.Expired(now) {
		t.Error("zero expiry should never report expired")
	}
}
