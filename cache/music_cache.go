package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abate-Agegnehu/musiccollectionbackend/model"

	"github.com/redis/go-redis/v9"
)

// versionTTL bounds how long an invalidation is remembered. It only has to
// outlive reads that were in flight when the record changed.
const versionTTL = 24 * time.Hour

// MusicCache keeps JSON copies of music records in Redis, keyed by id.
// Every invalidation bumps a per-record version; a read-through fill only
// lands if the version it started with is still current.
type MusicCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMusicCache returns a cache whose entries expire after ttl.
func NewMusicCache(client *redis.Client, ttl time.Duration) *MusicCache {
	return &MusicCache{client: client, ttl: ttl}
}

// GetMusicKey returns the Redis key of a record.
func GetMusicKey(id string) string {
	return fmt.Sprintf("music:%s", id)
}

func musicVersionKey(id string) string {
	return fmt.Sprintf("music:%s:version", id)
}

// Get returns the cached record, or nil on a miss.
func (c *MusicCache) Get(ctx context.Context, id string) (*model.Music, error) {
	data, err := c.client.Get(ctx, GetMusicKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached music %s: %w", id, err)
	}

	var m model.Music
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode cached music %s: %w", id, err)
	}
	return &m, nil
}

// Version returns the current invalidation version of a record.
func (c *MusicCache) Version(ctx context.Context, id string) (int64, error) {
	v, err := c.client.Get(ctx, musicVersionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cache version of music %s: %w", id, err)
	}
	return v, nil
}

// SetIfVersion stores m unless the record was invalidated since version was
// read. It reports whether the entry was written.
func (c *MusicCache) SetIfVersion(ctx context.Context, m *model.Music, version int64) (bool, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("failed to encode music %s: %w", m.ID, err)
	}

	versionKey := musicVersionKey(m.ID)
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, GetMusicKey(m.ID), data, c.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		// Invalidated while the fill was being written.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to cache music %s: %w", m.ID, err)
	}
	return stored, nil
}

// Invalidate drops the record from the cache and bumps its version.
func (c *MusicCache) Invalidate(ctx context.Context, id string) error {
	versionKey := musicVersionKey(id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, GetMusicKey(id))
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate music %s: %w", id, err)
	}
	return nil
}
