package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abate-Agegnehu/musiccollectionbackend/cache"
	"github.com/abate-Agegnehu/musiccollectionbackend/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepository counts FindByID calls that reach the backing store.
type countingRepository struct {
	*MemoryMusicRepository
	finds int
}

func (r *countingRepository) FindByID(ctx context.Context, id string) (*model.Music, error) {
	r.finds++
	return r.MemoryMusicRepository.FindByID(ctx, id)
}

func newCachedRepo(t *testing.T) (*CachedMusicRepository, *countingRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backing := &countingRepository{MemoryMusicRepository: NewMemoryMusicRepository()}
	return NewCachedMusicRepository(backing, cache.NewMusicCache(client, time.Minute)), backing, mr
}

func TestCachedRepositoryServesRepeatedReadsFromRedis(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	m := &model.Music{Title: "Windowlicker"}
	require.NoError(t, repo.Create(ctx, m))

	for i := 0; i < 3; i++ {
		got, err := repo.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Windowlicker", got.Title)
	}

	assert.Equal(t, 1, backing.finds)
	assert.True(t, mr.Exists(cache.GetMusicKey(m.ID)))
}

func TestCachedRepositoryInvalidatesOnUpdate(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newCachedRepo(t)
	m := &model.Music{Title: "before"}
	require.NoError(t, repo.Create(ctx, m))
	_, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)

	fields := m.Fields()
	fields.Title = "after"
	_, err = repo.UpdateByID(ctx, m.ID, fields)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
}

func TestCachedRepositoryInvalidatesOnDelete(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepo(t)
	m := &model.Music{Title: "gone"}
	require.NoError(t, repo.Create(ctx, m))
	_, _ = repo.FindByID(ctx, m.ID)

	deleted, err := repo.DeleteByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists(cache.GetMusicKey(m.ID)))

	got, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCachedRepositoryFallsBackWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	m := &model.Music{Title: "resilient"}
	require.NoError(t, repo.Create(ctx, m))
	mr.Close()

	got, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "resilient", got.Title)
	assert.Equal(t, 1, backing.finds)
}

// blockingRepository holds the next FindByID after it has read the record,
// so a write can land before the stale result reaches the cache.
type blockingRepository struct {
	*MemoryMusicRepository
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newBlockingRepository() *blockingRepository {
	r := &blockingRepository{
		MemoryMusicRepository: NewMemoryMusicRepository(),
		entered:               make(chan struct{}),
		release:               make(chan struct{}),
	}
	r.armed.Store(true)
	return r
}

func (r *blockingRepository) FindByID(ctx context.Context, id string) (*model.Music, error) {
	m, err := r.MemoryMusicRepository.FindByID(ctx, id)
	if r.armed.CompareAndSwap(true, false) {
		r.entered <- struct{}{}
		<-r.release
	}
	return m, err
}

func TestCachedRepositoryDropsFillThatRacedAnUpdate(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backing := newBlockingRepository()
	repo := NewCachedMusicRepository(backing, cache.NewMusicCache(client, time.Minute))

	m := &model.Music{Title: "Roygbiv", CloudinaryID: "media-1"}
	require.NoError(t, repo.Create(ctx, m))

	staleRead := make(chan *model.Music, 1)
	go func() {
		got, err := repo.FindByID(ctx, m.ID)
		assert.NoError(t, err)
		staleRead <- got
	}()
	<-backing.entered

	fields := m.Fields()
	fields.CloudinaryID = "media-2"
	_, err := repo.UpdateByID(ctx, m.ID, fields)
	require.NoError(t, err)

	close(backing.release)
	assert.Equal(t, "media-1", (<-staleRead).CloudinaryID)
	assert.False(t, mr.Exists(cache.GetMusicKey(m.ID)), "stale fill must not be cached")

	got, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "media-2", got.CloudinaryID)

	forWrite, err := repo.FindByIDForWrite(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "media-2", forWrite.CloudinaryID)
}

func TestCachedRepositoryFindByIDForWriteSkipsCache(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	m := &model.Music{Title: "Windowlicker"}
	require.NoError(t, repo.Create(ctx, m))

	for i := 0; i < 2; i++ {
		got, err := repo.FindByIDForWrite(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Windowlicker", got.Title)
	}
	assert.Equal(t, 0, backing.finds)
	assert.False(t, mr.Exists(cache.GetMusicKey(m.ID)))
}
