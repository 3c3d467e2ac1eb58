package repository

import (
	"context"

	"github.com/abate-Agegnehu/musiccollectionbackend/model"
)

// MusicRepository defines the record store operations for music.
// Lookups return (nil, nil) when the record does not exist.
type MusicRepository interface {
	// Create assigns an id and timestamps to m and stores it.
	Create(ctx context.Context, m *model.Music) error
	FindByID(ctx context.Context, id string) (*model.Music, error)
	// FindByIDForWrite reads the record from the backing store, bypassing
	// any cache. Update and delete start from it.
	FindByIDForWrite(ctx context.Context, id string) (*model.Music, error)
	// FindByEmail returns records whose email equals email exactly.
	FindByEmail(ctx context.Context, email string) ([]*model.Music, error)
	FindAll(ctx context.Context) ([]*model.Music, error)
	// UpdateByID replaces the mutable fields and returns the updated record.
	UpdateByID(ctx context.Context, id string, fields model.MusicFields) (*model.Music, error)
	// DeleteByID reports whether a record was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}
