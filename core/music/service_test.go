package music

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abate-Agegnehu/musiccollectionbackend/apperrors"
	"github.com/abate-Agegnehu/musiccollectionbackend/cache"
	"github.com/abate-Agegnehu/musiccollectionbackend/model"
	"github.com/abate-Agegnehu/musiccollectionbackend/repository"
	"github.com/abate-Agegnehu/musiccollectionbackend/storage"
)

type fakeMedia struct {
	mu         sync.Mutex
	uploads    []storage.UploadOptions
	destroyed  []string
	uploadErr  error
	destroyErr error
	next       int
}

func (f *fakeMedia) Upload(_ context.Context, _ string, opts storage.UploadOptions) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.next++
	f.uploads = append(f.uploads, opts)
	id := fmt.Sprintf("media-%d", f.next)
	return &storage.UploadResult{URL: "https://cdn.example.com/" + id, ID: id}, nil
}

func (f *fakeMedia) Destroy(_ context.Context, id string, _ storage.DestroyOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.destroyed = append(f.destroyed, id)
	return nil
}

// flakyRepository fails the selected writes.
type flakyRepository struct {
	repository.MusicRepository
	createErr error
	updateErr error
	deleteErr error
}

func (r *flakyRepository) Create(ctx context.Context, m *model.Music) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.MusicRepository.Create(ctx, m)
}

func (r *flakyRepository) UpdateByID(ctx context.Context, id string, f model.MusicFields) (*model.Music, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	return r.MusicRepository.UpdateByID(ctx, id, f)
}

func (r *flakyRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	if r.deleteErr != nil {
		return false, r.deleteErr
	}
	return r.MusicRepository.DeleteByID(ctx, id)
}

type recordingPublisher struct {
	events []model.MusicEvent
}

func (p *recordingPublisher) Publish(e model.MusicEvent) {
	p.events = append(p.events, e)
}

func audioFile() *model.StagedFile {
	return &model.StagedFile{OriginalName: "song.mp3", MimeType: "audio/mpeg", Path: "/tmp/song.mp3", Size: 1024}
}

func newTestService(opts ...Option) (*Service, *flakyRepository, *fakeMedia) {
	repo := &flakyRepository{MusicRepository: repository.NewMemoryMusicRepository()}
	media := &fakeMedia{}
	return NewService(repo, media, opts...), repo, media
}

func seed(t *testing.T, s *Service) *model.Music {
	t.Helper()
	m, err := s.Create(context.Background(), Input{Title: "Song", Artist: "Band", Email: "a@x.com"}, audioFile())
	require.NoError(t, err)
	return m
}

func TestCreate(t *testing.T) {
	pub := &recordingPublisher{}
	s, _, media := newTestService(WithPublisher(pub))

	m, err := s.Create(context.Background(), Input{Title: "Song", Artist: "Band", Email: "a@x.com"}, audioFile())
	require.NoError(t, err)

	assert.True(t, model.IsValidMusicID(m.ID))
	assert.Equal(t, "Song", m.Title)
	assert.Equal(t, "https://cdn.example.com/media-1", m.Avatar)
	assert.Equal(t, "media-1", m.CloudinaryID)
	require.Len(t, media.uploads, 1)
	assert.Equal(t, storage.ResourceVideo, media.uploads[0].Kind)
	assert.Equal(t, "audio/mpeg", media.uploads[0].ContentType)

	require.Len(t, pub.events, 1)
	assert.Equal(t, model.MusicCreated, pub.events[0].Type)
}

func TestCreateRejectsMissingAndNonMediaFiles(t *testing.T) {
	s, _, media := newTestService()
	ctx := context.Background()

	_, err := s.Create(ctx, Input{}, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Equal(t, MsgNoFile, apperrors.PublicMessage(err))

	_, err = s.Create(ctx, Input{}, &model.StagedFile{MimeType: "image/png", Path: "/tmp/x.mp3"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Equal(t, MsgNotMedia, apperrors.PublicMessage(err))

	assert.Empty(t, media.uploads)
}

func TestCreateUploadFailure(t *testing.T) {
	s, repo, media := newTestService()
	media.uploadErr = errors.New("cloud down")

	_, err := s.Create(context.Background(), Input{Title: "Song"}, audioFile())
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateDiscardsMediaWhenStoreFails(t *testing.T) {
	s, repo, media := newTestService()
	repo.createErr = errors.New("db down")

	_, err := s.Create(context.Background(), Input{Title: "Song"}, audioFile())
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
	assert.Equal(t, []string{"media-1"}, media.destroyed)
}

func TestGet(t *testing.T) {
	s, _, _ := newTestService()
	m := seed(t, s)

	got, err := s.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = s.Get(context.Background(), "not-an-id")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Equal(t, MsgInvalidID, apperrors.PublicMessage(err))

	_, err = s.Get(context.Background(), model.NewMusicID())
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Equal(t, MsgNotFound, apperrors.PublicMessage(err))
}

func TestListAndListByEmail(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	seed(t, s)
	seed(t, s)
	_, err = s.Create(ctx, Input{Title: "Other", Email: "b@x.com"}, audioFile())
	require.NoError(t, err)

	all, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byEmail, err := s.ListByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 2)

	_, err = s.ListByEmail(ctx, "nobody@x.com")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Equal(t, MsgEmailMissing, apperrors.PublicMessage(err))
}

func TestUpdateTextOnlyKeepsMedia(t *testing.T) {
	pub := &recordingPublisher{}
	s, _, media := newTestService(WithPublisher(pub))
	m := seed(t, s)

	updated, err := s.Update(context.Background(), m.ID, Input{Title: "New"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, m.Artist, updated.Artist)
	assert.Equal(t, m.Email, updated.Email)
	assert.Equal(t, m.Avatar, updated.Avatar)
	assert.Equal(t, m.CloudinaryID, updated.CloudinaryID)
	assert.Empty(t, media.destroyed)
	require.Len(t, pub.events, 2)
	assert.Equal(t, model.MusicUpdated, pub.events[1].Type)
}

func TestUpdateReplacesMedia(t *testing.T) {
	s, _, media := newTestService()
	m := seed(t, s)

	updated, err := s.Update(context.Background(), m.ID, Input{}, audioFile())
	require.NoError(t, err)

	assert.Equal(t, "media-2", updated.CloudinaryID)
	assert.Equal(t, "https://cdn.example.com/media-2", updated.Avatar)
	assert.Equal(t, []string{"media-1"}, media.destroyed)
}

func TestUpdateAlwaysPolicyDestroysWithoutReplacement(t *testing.T) {
	s, _, media := newTestService(WithDestroyOnEveryUpdate(true))
	m := seed(t, s)

	updated, err := s.Update(context.Background(), m.ID, Input{Artist: "Other"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Other", updated.Artist)
	assert.Equal(t, m.CloudinaryID, updated.CloudinaryID)
	assert.Equal(t, []string{"media-1"}, media.destroyed)
}

func TestUpdateMissingRecordTouchesNoMedia(t *testing.T) {
	s, _, media := newTestService(WithDestroyOnEveryUpdate(true))

	_, err := s.Update(context.Background(), model.NewMusicID(), Input{Title: "x"}, audioFile())
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Empty(t, media.uploads)
	assert.Empty(t, media.destroyed)

	_, err = s.Update(context.Background(), "bad", Input{}, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestUpdateRejectsNonMediaBeforeTouchingStore(t *testing.T) {
	s, _, media := newTestService()
	m := seed(t, s)

	_, err := s.Update(context.Background(), m.ID, Input{}, &model.StagedFile{MimeType: "text/plain", Path: "/tmp/a.mp3"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Len(t, media.uploads, 1)
	assert.Empty(t, media.destroyed)

	got, err := s.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.CloudinaryID, got.CloudinaryID)
}

func TestUpdateStoreFailureDiscardsNewMedia(t *testing.T) {
	s, repo, media := newTestService()
	m := seed(t, s)
	repo.updateErr = errors.New("db down")

	_, err := s.Update(context.Background(), m.ID, Input{}, audioFile())
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
	assert.Equal(t, []string{"media-2"}, media.destroyed)

	got, err := s.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "media-1", got.CloudinaryID)
}

func TestUpdateOldMediaDestroyFailureStillSucceeds(t *testing.T) {
	s, _, media := newTestService()
	m := seed(t, s)
	media.destroyErr = errors.New("cloud down")

	updated, err := s.Update(context.Background(), m.ID, Input{}, audioFile())
	require.NoError(t, err)
	assert.Equal(t, "media-2", updated.CloudinaryID)
}

func TestDelete(t *testing.T) {
	pub := &recordingPublisher{}
	s, _, media := newTestService(WithPublisher(pub))
	m := seed(t, s)

	require.NoError(t, s.Delete(context.Background(), m.ID))
	assert.Equal(t, []string{m.CloudinaryID}, media.destroyed)

	_, err := s.Get(context.Background(), m.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	require.Len(t, pub.events, 2)
	assert.Equal(t, model.MusicDeleted, pub.events[1].Type)
	assert.Equal(t, m.ID, pub.events[1].Music.ID)
}

func TestDeleteErrors(t *testing.T) {
	s, repo, media := newTestService()
	ctx := context.Background()

	assert.True(t, apperrors.Is(s.Delete(ctx, "zzz"), apperrors.KindValidation))
	assert.True(t, apperrors.Is(s.Delete(ctx, model.NewMusicID()), apperrors.KindNotFound))
	assert.Empty(t, media.destroyed)

	m := seed(t, s)
	media.destroyErr = errors.New("cloud down")
	assert.True(t, apperrors.Is(s.Delete(ctx, m.ID), apperrors.KindUpstream))

	// The record survives a failed media delete.
	_, err := s.Get(ctx, m.ID)
	require.NoError(t, err)

	media.destroyErr = nil
	repo.deleteErr = errors.New("db down")
	assert.True(t, apperrors.Is(s.Delete(ctx, m.ID), apperrors.KindUpstream))
}

// staleReadRepository answers FindByID with a snapshot, like a cache that
// missed an invalidation.
type staleReadRepository struct {
	repository.MusicRepository
	snapshot *model.Music
}

func (r *staleReadRepository) FindByID(context.Context, string) (*model.Music, error) {
	return r.snapshot, nil
}

func TestWritesStartFromBackingStore(t *testing.T) {
	ctx := context.Background()
	backing := repository.NewMemoryMusicRepository()
	stale := &staleReadRepository{MusicRepository: backing}
	media := &fakeMedia{}
	s := NewService(stale, media)

	m, err := s.Create(ctx, Input{Title: "Roygbiv", Artist: "Boards of Canada", Email: "a@x.com"}, audioFile())
	require.NoError(t, err)
	require.Equal(t, "media-1", m.CloudinaryID)
	snapshot := *m
	stale.snapshot = &snapshot

	updated, err := s.Update(ctx, m.ID, Input{}, audioFile())
	require.NoError(t, err)
	assert.Equal(t, "media-2", updated.CloudinaryID)
	assert.Equal(t, []string{"media-1"}, media.destroyed)

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "media-1", got.CloudinaryID, "reads go through the stale layer")

	media.destroyed = nil
	require.NoError(t, s.Delete(ctx, m.ID))
	assert.Equal(t, []string{"media-2"}, media.destroyed)
}

func TestConcurrentUpdateAndDelete(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, _, media := newTestService()
		ctx := context.Background()
		m := seed(t, s)

		var (
			wg        sync.WaitGroup
			updateErr error
			deleteErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, updateErr = s.Update(ctx, m.ID, Input{Title: "Renamed"}, audioFile())
		}()
		go func() {
			defer wg.Done()
			deleteErr = s.Delete(ctx, m.ID)
		}()
		wg.Wait()

		require.NoError(t, deleteErr)
		if updateErr != nil {
			require.True(t, apperrors.Is(updateErr, apperrors.KindNotFound), "unexpected update error: %v", updateErr)
		}

		_, err := s.Get(ctx, m.ID)
		require.True(t, apperrors.Is(err, apperrors.KindNotFound))

		media.mu.Lock()
		assert.Contains(t, media.destroyed, m.CloudinaryID)
		for _, id := range media.destroyed {
			assert.Contains(t, []string{"media-1", "media-2"}, id)
		}
		media.mu.Unlock()
	}
}

// heldReadRepository parks the first FindByID after it has read the record.
type heldReadRepository struct {
	repository.MusicRepository
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r *heldReadRepository) FindByID(ctx context.Context, id string) (*model.Music, error) {
	m, err := r.MusicRepository.FindByID(ctx, id)
	if r.armed.CompareAndSwap(true, false) {
		r.entered <- struct{}{}
		<-r.release
	}
	return m, err
}

func TestCachedReadRacingUpdateDoesNotLeakIntoDelete(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	held := &heldReadRepository{
		MusicRepository: repository.NewMemoryMusicRepository(),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	repo := repository.NewCachedMusicRepository(held, cache.NewMusicCache(client, time.Minute))
	media := &fakeMedia{}
	s := NewService(repo, media)

	m, err := s.Create(ctx, Input{Title: "Roygbiv", Artist: "Boards of Canada", Email: "a@x.com"}, audioFile())
	require.NoError(t, err)
	require.Equal(t, "media-1", m.CloudinaryID)

	held.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.Get(ctx, m.ID)
		assert.NoError(t, err)
	}()
	<-held.entered

	updated, err := s.Update(ctx, m.ID, Input{}, audioFile())
	require.NoError(t, err)
	require.Equal(t, "media-2", updated.CloudinaryID)

	close(held.release)
	<-done

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "media-2", got.CloudinaryID)

	media.destroyed = nil
	require.NoError(t, s.Delete(ctx, m.ID))
	assert.Equal(t, []string{"media-2"}, media.destroyed)
}
