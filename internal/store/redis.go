// Package store provides the Redis implementation of the Store interface.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyspace prefixes all keys so the database can be shared.
const keyspace = "trustlens:"

// RedisStore implements Store using Redis. Expiry is delegated to Redis
// native TTLs, so ScanExpired always reports nothing to sweep.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get retrieves an entry by key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	value, err := s.client.Get(ctx, keyspace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry := &Entry{Key: key, Value: value}
	if ttl, err := s.client.PTTL(ctx, keyspace+key).Result(); err == nil && ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	return entry, nil
}

// Put writes a value with the given time-to-live. A non-positive TTL means
// the entry is already expired and the key is removed instead.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return s.client.Del(ctx, keyspace+key).Err()
	}
	return s.client.Set(ctx, keyspace+key, value, ttl).Err()
}

// Delete removes a key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyspace+key).Err()
}

// ScanExpired returns nothing; Redis expires keys natively.
func (s *RedisStore) ScanExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

// Count returns the number of stored entries.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	var total int64
	iter := s.client.Scan(ctx, 0, keyspace+"*", 0).Iterator()
	for iter.Next(ctx) {
		total++
	}
	return total, iter.Err()
}
