package auth

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisRevokerExpiresWithToken(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	ctx := context.Background()
	rev := NewRedisRevoker(cache)
	if err := rev.Revoke(ctx, "tok-a", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	revoked, err := rev.IsRevoked(ctx, "tok-a")
	if err != nil || !revoked {
		t.Fatalf("expected tok-a revoked, got %v %v", revoked, err)
	}
	if revoked, _ := rev.IsRevoked(ctx, "tok-b"); revoked {
		t.Fatalf("tok-b should not be revoked")
	}

	mr.FastForward(2 * time.Minute)
	if revoked, _ := rev.IsRevoked(ctx, "tok-a"); revoked {
		t.Fatalf("revocation should expire with the token")
	}
}

func TestRedisRevokerIgnoresExpiredTokens(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	if err := NewRedisRevoker(cache).Revoke(context.Background(), "old", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys for an already expired token, got %v", mr.Keys())
	}
}

func TestMemoryRevokerPrune(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rev := NewMemoryRevoker()
	rev.now = func() time.Time { return now }
	ctx := context.Background()

	_ = rev.Revoke(ctx, "short", now.Add(time.Minute))
	_ = rev.Revoke(ctx, "long", now.Add(time.Hour))
	if rev.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", rev.Len())
	}

	now = now.Add(10 * time.Minute)
	if revoked, _ := rev.IsRevoked(ctx, "short"); revoked {
		t.Fatalf("short entry should have lapsed")
	}
	if revoked, _ := rev.IsRevoked(ctx, "long"); !revoked {
		t.Fatalf("long entry should still be revoked")
	}
	if dropped := rev.Prune(); dropped != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", dropped)
	}
	if rev.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", rev.Len())
	}
}
