package identity

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return m, client
}

func TestRedisRevokerRevoke(t *testing.T) {
	m, client := newTestRedis(t)
	revoker := NewRedisRevoker(client)
	ctx := context.Background()

	if revoked, err := revoker.IsRevoked(ctx, "tok-1"); err != nil || revoked {
		t.Fatalf("expected fresh token to be live, got %v %v", revoked, err)
	}
	if set, err := revoker.Revoke(ctx, "tok-1", time.Now().Add(time.Minute)); err != nil || !set {
		t.Fatalf("revoke: set=%v err=%v", set, err)
	}
	if set, err := revoker.Revoke(ctx, "tok-1", time.Now().Add(time.Minute)); err != nil || set {
		t.Fatalf("second revoke must report existing record, set=%v err=%v", set, err)
	}
	if revoked, err := revoker.IsRevoked(ctx, "tok-1"); err != nil || !revoked {
		t.Fatalf("expected token to be revoked, got %v %v", revoked, err)
	}
	if !m.Exists("revoked:tok-1") {
		t.Fatal("expected namespaced key")
	}

	m.FastForward(2 * time.Minute)
	if revoked, err := revoker.IsRevoked(ctx, "tok-1"); err != nil || revoked {
		t.Fatalf("expected record to expire with the token, got %v %v", revoked, err)
	}
}

func TestRedisRevokerSkipsExpiredTokens(t *testing.T) {
	m, client := newTestRedis(t)
	revoker := NewRedisRevoker(client)

	if set, err := revoker.Revoke(context.Background(), "tok-old", time.Now().Add(-time.Minute)); err != nil || set {
		t.Fatalf("revoke: set=%v err=%v", set, err)
	}
	if m.Exists("revoked:tok-old") {
		t.Fatal("expired token should not be recorded")
	}
}

func TestRedisRevokerError(t *testing.T) {
	m, client := newTestRedis(t)
	revoker := NewRedisRevoker(client)
	m.Close()

	if _, err := revoker.IsRevoked(context.Background(), "tok-1"); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}
