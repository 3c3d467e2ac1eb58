package music

import (
	"context"
	"errors"

	"github.com/abate-Agegnehu/musiccollectionbackend/apperrors"
	"github.com/abate-Agegnehu/musiccollectionbackend/logger"
	"github.com/abate-Agegnehu/musiccollectionbackend/model"
	"github.com/abate-Agegnehu/musiccollectionbackend/repository"
	"github.com/abate-Agegnehu/musiccollectionbackend/storage"
)

// Client-facing messages.
const (
	MsgNoFile       = "No file uploaded"
	MsgNotMedia     = "Only audio or video files are allowed"
	MsgInvalidID    = "Invalid music ID format"
	MsgNotFound     = "Music not found"
	MsgEmailMissing = "No music found for this email"
)

// Publisher receives record change events.
type Publisher interface {
	Publish(event model.MusicEvent)
}

// Input holds the text fields of a create or update request.
// Empty strings mean "not supplied".
type Input struct {
	Title  string
	Artist string
	Email  string
}

// Service implements the music operations on top of a record store and a
// media store.
type Service struct {
	repo   repository.MusicRepository
	media  storage.MediaStore
	events Publisher

	// destroyOnEveryUpdate drops the current media before every update,
	// even when no replacement is uploaded.
	destroyOnEveryUpdate bool
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends change events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithDestroyOnEveryUpdate restores the legacy update behavior where the
// stored media is destroyed whether or not a replacement is supplied.
func WithDestroyOnEveryUpdate(enabled bool) Option {
	return func(s *Service) { s.destroyOnEveryUpdate = enabled }
}

func NewService(repo repository.MusicRepository, media storage.MediaStore, opts ...Option) *Service {
	s := &Service{repo: repo, media: media}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create uploads file and stores a new record pointing at it.
func (s *Service) Create(ctx context.Context, in Input, file *model.StagedFile) (*model.Music, error) {
	if file == nil {
		return nil, apperrors.Validation(MsgNoFile)
	}
	if !file.IsMedia() {
		return nil, apperrors.Validation(MsgNotMedia)
	}

	uploaded, err := s.upload(ctx, file)
	if err != nil {
		return nil, err
	}

	m := &model.Music{
		Title:        in.Title,
		Artist:       in.Artist,
		Email:        in.Email,
		Avatar:       uploaded.URL,
		CloudinaryID: uploaded.ID,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.discard(ctx, uploaded.ID)
		return nil, upstream("create music", err)
	}

	logger.Info("music created", logger.String("id", m.ID), logger.String("mediaId", m.CloudinaryID))
	s.publish(model.MusicCreated, m)
	return m, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id string) (*model.Music, error) {
	if !model.IsValidMusicID(id) {
		return nil, apperrors.Validation(MsgInvalidID)
	}
	return s.find(ctx, id, s.repo.FindByID)
}

// loadForWrite reads the record a write starts from, bypassing any cache.
func (s *Service) loadForWrite(ctx context.Context, id string) (*model.Music, error) {
	if !model.IsValidMusicID(id) {
		return nil, apperrors.Validation(MsgInvalidID)
	}
	return s.find(ctx, id, s.repo.FindByIDForWrite)
}

func (s *Service) find(ctx context.Context, id string, lookup func(context.Context, string) (*model.Music, error)) (*model.Music, error) {
	m, err := lookup(ctx, id)
	if err != nil {
		return nil, upstream("find music", err)
	}
	if m == nil {
		return nil, apperrors.NotFound(MsgNotFound)
	}
	return m, nil
}

// List returns every record.
func (s *Service) List(ctx context.Context) ([]*model.Music, error) {
	musics, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, upstream("list music", err)
	}
	return musics, nil
}

// ListByEmail returns the records grouped under email. An empty result is
// reported as not found.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]*model.Music, error) {
	musics, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, upstream("list music by email", err)
	}
	if len(musics) == 0 {
		return nil, apperrors.NotFound(MsgEmailMissing)
	}
	return musics, nil
}

// Update changes the supplied fields of a record and optionally swaps its
// media. Unsupplied fields keep their current values.
func (s *Service) Update(ctx context.Context, id string, in Input, file *model.StagedFile) (*model.Music, error) {
	current, err := s.loadForWrite(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.destroyOnEveryUpdate && current.CloudinaryID != "" {
		if err := s.destroy(ctx, current.CloudinaryID); err != nil {
			return nil, err
		}
	}

	var uploaded *storage.UploadResult
	if file != nil {
		if !file.IsMedia() {
			return nil, apperrors.Validation(MsgNotMedia)
		}
		if uploaded, err = s.upload(ctx, file); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.UpdateByID(ctx, id, mergeFields(current, in, uploaded))
	if err != nil || updated == nil {
		if uploaded != nil {
			s.discard(ctx, uploaded.ID)
		}
		if err != nil {
			return nil, upstream("update music", err)
		}
		// Deleted between the lookup and the write.
		return nil, apperrors.NotFound(MsgNotFound)
	}

	if !s.destroyOnEveryUpdate && uploaded != nil && current.CloudinaryID != "" {
		// The record already points at the new media; a failure here only
		// leaves an orphaned object behind.
		if err := s.destroy(ctx, current.CloudinaryID); err != nil {
			logger.Error("failed to destroy replaced media",
				logger.String("id", id),
				logger.String("mediaId", current.CloudinaryID),
				logger.ErrorField(err))
		}
	}

	logger.Info("music updated", logger.String("id", id), logger.Bool("mediaReplaced", uploaded != nil))
	s.publish(model.MusicUpdated, updated)
	return updated, nil
}

// Delete destroys the record's media, then the record.
func (s *Service) Delete(ctx context.Context, id string) error {
	current, err := s.loadForWrite(ctx, id)
	if err != nil {
		return err
	}

	if current.CloudinaryID != "" {
		if err := s.destroy(ctx, current.CloudinaryID); err != nil {
			return err
		}
	}

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return upstream("delete music", err)
	}
	if !deleted {
		return apperrors.NotFound(MsgNotFound)
	}

	logger.Info("music deleted", logger.String("id", id), logger.String("mediaId", current.CloudinaryID))
	s.publish(model.MusicDeleted, current)
	return nil
}

// Ping checks the record store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) upload(ctx context.Context, file *model.StagedFile) (*storage.UploadResult, error) {
	res, err := s.media.Upload(ctx, file.Path, storage.UploadOptions{
		Kind:        storage.ResourceVideo,
		ContentType: file.MimeType,
	})
	if err != nil {
		return nil, upstream("upload media", err)
	}
	return res, nil
}

func (s *Service) destroy(ctx context.Context, mediaID string) error {
	if err := s.media.Destroy(ctx, mediaID, storage.DestroyOptions{Kind: storage.ResourceVideo}); err != nil {
		return upstream("destroy media", err)
	}
	return nil
}

// discard removes media uploaded for a write that did not happen. It runs
// even when the request context is already cancelled.
func (s *Service) discard(ctx context.Context, mediaID string) {
	if err := s.destroy(context.WithoutCancel(ctx), mediaID); err != nil {
		logger.Error("failed to discard uploaded media", logger.String("mediaId", mediaID), logger.ErrorField(err))
	}
}

func (s *Service) publish(t model.MusicEventType, m *model.Music) {
	if s.events != nil {
		s.events.Publish(model.NewMusicEvent(t, m))
	}
}

func mergeFields(current *model.Music, in Input, uploaded *storage.UploadResult) model.MusicFields {
	fields := current.Fields()
	if in.Title != "" {
		fields.Title = in.Title
	}
	if in.Artist != "" {
		fields.Artist = in.Artist
	}
	if in.Email != "" {
		fields.Email = in.Email
	}
	if uploaded != nil {
		fields.Avatar = uploaded.URL
		fields.CloudinaryID = uploaded.ID
	}
	return fields
}

// upstream keeps typed errors and marks anything else as an upstream failure.
func upstream(op string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Upstream(op, err)
}
