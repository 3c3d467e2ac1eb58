package repository

import (
	"context"
	"errors"
	"time"

	"github.com/abate-Agegnehu/musiccollectionbackend/apperrors"
	"github.com/abate-Agegnehu/musiccollectionbackend/model"

	"gorm.io/gorm"
)

// MusicRow is the relational shape of a music record.
type MusicRow struct {
	ID           string    `gorm:"primaryKey;size:24"`
	Title        string    `gorm:"size:255"`
	Artist       string    `gorm:"size:255"`
	Email        string    `gorm:"size:255;index"`
	Avatar       string    `gorm:"size:1024"`
	CloudinaryID string    `gorm:"column:cloudinary_id;size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName keeps the collection name used by the document store.
func (MusicRow) TableName() string {
	return "musics"
}

func newMusicRow(m *model.Music) *MusicRow {
	return &MusicRow{
		ID:           m.ID,
		Title:        m.Title,
		Artist:       m.Artist,
		Email:        m.Email,
		Avatar:       m.Avatar,
		CloudinaryID: m.CloudinaryID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (row *MusicRow) toModel() *model.Music {
	return &model.Music{
		ID:           row.ID,
		Title:        row.Title,
		Artist:       row.Artist,
		Email:        row.Email,
		Avatar:       row.Avatar,
		CloudinaryID: row.CloudinaryID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// GormMusicRepository stores music records in MySQL or Postgres through GORM.
type GormMusicRepository struct {
	db *gorm.DB
}

// NewGormMusicRepository creates a repository over gdb.
func NewGormMusicRepository(gdb *gorm.DB) *GormMusicRepository {
	return &GormMusicRepository{db: gdb}
}

func (r *GormMusicRepository) Create(ctx context.Context, m *model.Music) error {
	if m.ID == "" {
		m.ID = model.NewMusicID()
	}
	row := newMusicRow(m)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return apperrors.Upstream("insert music", err)
	}
	m.CreatedAt, m.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (r *GormMusicRepository) FindByID(ctx context.Context, id string) (*model.Music, error) {
	var row MusicRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Upstream("find music", err)
	}
	return row.toModel(), nil
}

func (r *GormMusicRepository) FindByIDForWrite(ctx context.Context, id string) (*model.Music, error) {
	return r.FindByID(ctx, id)
}

func (r *GormMusicRepository) FindByEmail(ctx context.Context, email string) ([]*model.Music, error) {
	var rows []MusicRow
	if err := r.db.WithContext(ctx).Where("email = ?", email).Order("created_at").Find(&rows).Error; err != nil {
		return nil, apperrors.Upstream("find music", err)
	}
	return rowsToModels(rows), nil
}

func (r *GormMusicRepository) FindAll(ctx context.Context) ([]*model.Music, error) {
	var rows []MusicRow
	if err := r.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, apperrors.Upstream("find music", err)
	}
	return rowsToModels(rows), nil
}

func (r *GormMusicRepository) UpdateByID(ctx context.Context, id string, fields model.MusicFields) (*model.Music, error) {
	var updated *model.Music
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row MusicRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return err
		}
		m := row.toModel()
		m.Apply(fields)
		row = *newMusicRow(m)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		updated = row.toModel()
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Upstream("update music", err)
	}
	return updated, nil
}

func (r *GormMusicRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&MusicRow{}, "id = ?", id)
	if res.Error != nil {
		return false, apperrors.Upstream("delete music", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormMusicRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return apperrors.Upstream("ping database", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.Upstream("ping database", err)
	}
	return nil
}

func rowsToModels(rows []MusicRow) []*model.Music {
	musics := make([]*model.Music, 0, len(rows))
	for i := range rows {
		musics = append(musics, rows[i].toModel())
	}
	return musics
}
