package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/abate-Agegnehu/musiccollectionbackend/cache"
	"github.com/abate-Agegnehu/musiccollectionbackend/config"
	"github.com/abate-Agegnehu/musiccollectionbackend/db"
	"github.com/abate-Agegnehu/musiccollectionbackend/logger"
	"github.com/abate-Agegnehu/musiccollectionbackend/repository"
	"github.com/abate-Agegnehu/musiccollectionbackend/storage"
)

// closer releases a process-wide client on shutdown.
type closer struct {
	name  string
	close func() error
}

// app holds the process-wide clients built from the configuration.
type app struct {
	repo    repository.MusicRepository
	media   storage.MediaStore
	closers []closer
}

func (a *app) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// Close releases clients in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			logger.Warn("failed to close client", logger.String("client", c.name), logger.ErrorField(err))
		}
	}
	a.closers = nil
}

// buildApp validates cfg and connects the record store, the media store and
// the optional Redis cache. Any missing setting or unreachable backend is a
// startup error.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{}
	if err := a.openRepository(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openMediaStore(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openRepository(ctx context.Context, cfg *config.Config) error {
	switch cfg.DBDriver {
	case config.DriverMongo:
		client, err := db.ConnectMongo(ctx, cfg)
		if err != nil {
			return err
		}
		a.onClose("mongo", func() error { return db.DisconnectMongo(client) })
		coll := db.MusicCollection(client, cfg)
		if err := db.EnsureMongoIndexes(ctx, coll); err != nil {
			return err
		}
		a.repo = repository.NewMongoMusicRepository(coll)

	case config.DriverMySQL, config.DriverPostgres:
		gdb, err := db.ConnectGorm(cfg)
		if err != nil {
			return err
		}
		a.onClose(cfg.DBDriver, func() error { return db.CloseGorm(gdb) })
		if err := db.AutoMigrateModels(gdb, &repository.MusicRow{}); err != nil {
			return err
		}
		a.repo = repository.NewGormMusicRepository(gdb)

	case config.DriverMemory:
		logger.Warn("using in-memory record store; records are lost on restart")
		a.repo = repository.NewMemoryMusicRepository()

	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if !cfg.RedisEnabled {
		return nil
	}
	rdb, err := db.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	a.onClose("redis", rdb.Close)
	a.repo = repository.NewCachedMusicRepository(a.repo, cache.NewMusicCache(rdb, cfg.CacheTTL))
	logger.Info("record cache enabled", logger.String("addr", cfg.RedisAddr()), logger.Duration("ttl", cfg.CacheTTL))
	return nil
}

func (a *app) openMediaStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.MediaProvider {
	case config.ProviderCloudinary:
		store, err := storage.NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return err
		}
		a.media = store

	case config.ProviderMinio:
		store, err := newMinioStore(ctx, cfg)
		if err != nil {
			return err
		}
		a.media = store

	case config.ProviderLocal:
		store, err := storage.NewLocalStore(cfg.MediaDir, cfg.LocalMediaBaseURL())
		if err != nil {
			return err
		}
		a.media = store

	default:
		return fmt.Errorf("unsupported MEDIA_PROVIDER %q", cfg.MediaProvider)
	}

	logger.Info("media store ready", logger.String("provider", cfg.MediaProvider))
	return nil
}

func newMinioStore(ctx context.Context, cfg *config.Config) (*storage.MinioStore, error) {
	return storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Region:    cfg.MinioRegion,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MinioPublicURL,
	})
}

var errNotMinio = errors.New("this command requires MEDIA_PROVIDER=minio")
