package identity

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevoker records revoked token ids in Redis so every instance rejects
// them until they would have expired anyway.
type RedisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker creates a revoker using the provided Redis client.
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) key(tokenID string) string {
	return "revoked:" + tokenID
}

// Revoke marks tokenID as revoked until the given time and reports whether
// this call set the record. Tokens already past their expiry need no record
// and report false.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	ttl := time.Until(until)
	if tokenID == "" || ttl <= 0 {
		return false, nil
	}
	return r.client.SetNX(ctx, r.key(tokenID), 1, ttl).Result()
}

// IsRevoked reports whether tokenID has been revoked.
func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
