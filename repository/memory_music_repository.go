package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abate-Agegnehu/musiccollectionbackend/model"
)

// MemoryMusicRepository keeps records in process memory. It backs local
// development runs (DB_DRIVER=memory) and tests.
type MemoryMusicRepository struct {
	mu     sync.RWMutex
	musics map[string]*model.Music
}

func NewMemoryMusicRepository() *MemoryMusicRepository {
	return &MemoryMusicRepository{musics: make(map[string]*model.Music)}
}

func (r *MemoryMusicRepository) Create(_ context.Context, m *model.Music) error {
	if m.ID == "" {
		m.ID = model.NewMusicID()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *m
	r.musics[m.ID] = &copied
	return nil
}

func (r *MemoryMusicRepository) FindByID(_ context.Context, id string) (*model.Music, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.musics[id]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (r *MemoryMusicRepository) FindByIDForWrite(ctx context.Context, id string) (*model.Music, error) {
	return r.FindByID(ctx, id)
}

func (r *MemoryMusicRepository) FindByEmail(_ context.Context, email string) ([]*model.Music, error) {
	return r.filter(func(m *model.Music) bool { return m.Email == email }), nil
}

func (r *MemoryMusicRepository) FindAll(_ context.Context) ([]*model.Music, error) {
	return r.filter(func(*model.Music) bool { return true }), nil
}

func (r *MemoryMusicRepository) filter(keep func(*model.Music) bool) []*model.Music {
	r.mu.RLock()
	defer r.mu.RUnlock()

	musics := make([]*model.Music, 0, len(r.musics))
	for _, m := range r.musics {
		if keep(m) {
			copied := *m
			musics = append(musics, &copied)
		}
	}
	sort.Slice(musics, func(i, j int) bool { return musics[i].ID < musics[j].ID })
	return musics
}

func (r *MemoryMusicRepository) UpdateByID(_ context.Context, id string, fields model.MusicFields) (*model.Music, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.musics[id]
	if !ok {
		return nil, nil
	}
	m.Apply(fields)
	m.UpdatedAt = time.Now().UTC()
	copied := *m
	return &copied, nil
}

func (r *MemoryMusicRepository) DeleteByID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.musics[id]
	delete(r.musics, id)
	return ok, nil
}

func (r *MemoryMusicRepository) Ping(context.Context) error {
	return nil
}
