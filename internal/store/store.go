// Package store provides the durable key-value layer with support for
// multiple backends.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/trustlens/trustlens/internal/config"
)

// Key namespaces. Every key written through the store is prefixed with one of
// these so backends can be shared across concerns.
const (
	NamespaceTrustAnalysis = "trust-analysis"
	NamespaceCredibility   = "credibility"
	NamespaceDuplication   = "duplication"
	NamespaceMedia         = "media"
	NamespaceDailyMetrics  = "daily-metrics"
)

// Key builds a namespaced store key.
func Key(namespace, id string) string {
	return namespace + ":" + id
}

// Entry is a stored value with its expiry.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Store defines the interface for durable key-value persistence.
type Store interface {
	// Get retrieves an entry by key. Returns (nil, nil) when the key is
	// absent. Callers own expiry checks; a backend may also expire natively.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put writes a value with the given time-to-live.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ScanExpired returns the keys of all entries expired as of cutoff.
	ScanExpired(ctx context.Context, cutoff time.Time) ([]string, error)

	// Count returns the number of stored entries, expired or not.
	Count(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}

// New creates a store based on configuration.
func New(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisDB)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
