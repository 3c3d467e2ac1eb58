package repository

import (
	"context"
	"testing"

	"github.com/abate-Agegnehu/musiccollectionbackend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMusicRepository()

	m := &model.Music{Title: "Roygbiv", Artist: "Boards of Canada", Email: "boc@warp.net", Avatar: "https://cdn/r.mp3", CloudinaryID: "music/r"}
	require.NoError(t, repo.Create(ctx, m))
	require.True(t, model.IsValidMusicID(m.ID))
	assert.False(t, m.CreatedAt.IsZero())

	got, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roygbiv", got.Title)

	fields := got.Fields()
	fields.Title = "Olson"
	updated, err := repo.UpdateByID(ctx, m.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, "Olson", updated.Title)
	assert.Equal(t, "music/r", updated.CloudinaryID)

	deleted, err := repo.DeleteByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = repo.DeleteByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryRepositoryFindByEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMusicRepository()
	for _, email := range []string{"a@x.io", "b@x.io", "a@x.io", "A@x.io"} {
		require.NoError(t, repo.Create(ctx, &model.Music{Email: email}))
	}

	musics, err := repo.FindByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Len(t, musics, 2)
	for _, m := range musics {
		assert.Equal(t, "a@x.io", m.Email)
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMusicRepository()
	m := &model.Music{Title: "original"}
	require.NoError(t, repo.Create(ctx, m))

	got, _ := repo.FindByID(ctx, m.ID)
	got.Title = "mutated"

	again, _ := repo.FindByID(ctx, m.ID)
	assert.Equal(t, "original", again.Title)
}

func TestMemoryRepositoryUpdateMissing(t *testing.T) {
	got, err := NewMemoryMusicRepository().UpdateByID(context.Background(), model.NewMusicID(), model.MusicFields{})
	require.NoError(t, err)
	assert.Nil(t, got)
}
