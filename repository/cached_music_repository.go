package repository

import (
	"context"

	"github.com/abate-Agegnehu/musiccollectionbackend/cache"
	"github.com/abate-Agegnehu/musiccollectionbackend/logger"
	"github.com/abate-Agegnehu/musiccollectionbackend/model"
)

// CachedMusicRepository serves FindByID from Redis and keeps the cache in
// step with writes. A fill that raced with a write is dropped, and
// FindByIDForWrite always goes to the backing store. Cache failures are
// logged and never fail the request.
type CachedMusicRepository struct {
	MusicRepository
	cache *cache.MusicCache
}

// NewCachedMusicRepository wraps next with c.
func NewCachedMusicRepository(next MusicRepository, c *cache.MusicCache) *CachedMusicRepository {
	return &CachedMusicRepository{MusicRepository: next, cache: c}
}

func (r *CachedMusicRepository) FindByID(ctx context.Context, id string) (*model.Music, error) {
	cached, err := r.cache.Get(ctx, id)
	if err != nil {
		logger.Warn("music cache read failed", logger.String("id", id), logger.ErrorField(err))
	}
	if cached != nil {
		return cached, nil
	}

	// The version is taken before the backing read so an invalidation in
	// between is detected when filling.
	version, versionErr := r.cache.Version(ctx, id)

	m, err := r.MusicRepository.FindByID(ctx, id)
	if err != nil || m == nil {
		return m, err
	}
	if versionErr != nil {
		return m, nil
	}
	if _, err := r.cache.SetIfVersion(ctx, m, version); err != nil {
		logger.Warn("music cache write failed", logger.String("id", id), logger.ErrorField(err))
	}
	return m, nil
}

func (r *CachedMusicRepository) FindByIDForWrite(ctx context.Context, id string) (*model.Music, error) {
	return r.MusicRepository.FindByIDForWrite(ctx, id)
}

func (r *CachedMusicRepository) UpdateByID(ctx context.Context, id string, fields model.MusicFields) (*model.Music, error) {
	m, err := r.MusicRepository.UpdateByID(ctx, id, fields)
	r.invalidate(ctx, id)
	return m, err
}

func (r *CachedMusicRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	deleted, err := r.MusicRepository.DeleteByID(ctx, id)
	r.invalidate(ctx, id)
	return deleted, err
}

func (r *CachedMusicRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Invalidate(ctx, id); err != nil {
		logger.Warn("music cache invalidation failed", logger.String("id", id), logger.ErrorField(err))
	}
}
