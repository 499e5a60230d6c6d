package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskflow/domain"
)

type backend interface {
	ListBlobs(ctx context.Context, prefix string) ([]domain.BlobRef, error)
	ResolveURL(ctx context.Context, ref domain.BlobRef) (string, error)
	PutBlob(ctx context.Context, prefix, name, contentType string, data []byte) (domain.BlobRef, error)
	FetchCaptions(ctx context.Context, userKey string) (map[string]string, error)
	SaveCaption(ctx context.Context, userKey string, ref domain.BlobRef, caption string) error
}

// Cache wraps a feed backend with Redis-backed caching for feed listings.
// Resolved URLs are never cached since they expire.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper around base using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
}

func (c *Cache) ListBlobs(ctx context.Context, prefix string) ([]domain.BlobRef, error) {
	var refs []domain.BlobRef
	if c.load(ctx, blobsCacheKey(prefix), &refs) {
		return refs, nil
	}

	refs, err := c.base.ListBlobs(ctx, prefix)
	if err != nil {
		return nil, err
	}

	c.store(ctx, blobsCacheKey(prefix), refs)
	return refs, nil
}

func (c *Cache) FetchCaptions(ctx context.Context, userKey string) (map[string]string, error) {
	var captions map[string]string
	if c.load(ctx, captionsCacheKey(userKey), &captions) {
		return captions, nil
	}

	captions, err := c.base.FetchCaptions(ctx, userKey)
	if err != nil {
		return nil, err
	}

	c.store(ctx, captionsCacheKey(userKey), captions)
	return captions, nil
}

func (c *Cache) ResolveURL(ctx context.Context, ref domain.BlobRef) (string, error) {
	return c.base.ResolveURL(ctx, ref)
}

func (c *Cache) PutBlob(ctx context.Context, prefix, name, contentType string, data []byte) (domain.BlobRef, error) {
	ref, err := c.base.PutBlob(ctx, prefix, name, contentType, data)
	if err != nil {
		return domain.BlobRef{}, err
	}

	c.evict(ctx, blobsCacheKey(prefix))
	return ref, nil
}

func (c *Cache) SaveCaption(ctx context.Context, userKey string, ref domain.BlobRef, caption string) error {
	if err := c.base.SaveCaption(ctx, userKey, ref, caption); err != nil {
		return err
	}

	c.evict(ctx, captionsCacheKey(userKey))
	return nil
}

func (c *Cache) load(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, key).Result()
}

func blobsCacheKey(prefix string) string {
	return "blobs:" + prefix
}

func captionsCacheKey(userKey string) string {
	return "captions:" + userKey
}
