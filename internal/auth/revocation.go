package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "revoked:v1:"

// Revoker records tokens that were logged out before their expiry.
type Revoker interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisRevoker stores revocations as Redis keys expiring with the token.
type RedisRevoker struct {
	cache *redis.Client
}

func NewRedisRevoker(cache *redis.Client) *RedisRevoker {
	return &RedisRevoker{cache: cache}
}

func (r *RedisRevoker) Revoke(ctx context.Context, token string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.cache.Set(ctx, revokedPrefix+fingerprint(token), "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.cache.Exists(ctx, revokedPrefix+fingerprint(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevoker keeps revocations in process. Expired entries are dropped by
// Prune, which the scheduler calls periodically.
type MemoryRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{entries: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRevoker) Revoke(_ context.Context, token string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !until.After(r.now()) {
		return nil
	}
	r.entries[fingerprint(token)] = until
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.entries[fingerprint(token)]
	return ok && until.After(r.now()), nil
}

// Prune removes expired entries and returns how many were dropped.
func (r *MemoryRevoker) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	dropped := 0
	for key, until := range r.entries {
		if !until.After(now) {
			delete(r.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked entries.
func (r *MemoryRevoker) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
