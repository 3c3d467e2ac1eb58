package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abate-Agegnehu/musiccollectionbackend/config"
	"github.com/abate-Agegnehu/musiccollectionbackend/core/music"
	"github.com/abate-Agegnehu/musiccollectionbackend/logger"
	"github.com/abate-Agegnehu/musiccollectionbackend/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long:  `Start the music collection HTTP API. This is also what runs when no subcommand is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", logger.ErrorField(err))
		return err
	}
	defer a.Close()

	hub := server.NewEventHub()
	go hub.Run()
	defer hub.Stop()

	svc := music.NewService(a.repo, a.media,
		music.WithPublisher(hub),
		music.WithDestroyOnEveryUpdate(cfg.MediaUpdatePolicy == config.UpdatePolicyAlways))

	opts := server.Options{
		Music:  svc,
		Events: hub,
		Upload: server.UploadConfig{Dir: cfg.UploadDir, MaxFileSize: cfg.MaxUploadSize},
	}
	if cfg.MediaProvider == config.ProviderLocal {
		opts.MediaDir = cfg.MediaDir
	}

	logger.Info("starting music collection server",
		logger.String("port", cfg.Port),
		logger.String("dbDriver", cfg.DBDriver),
		logger.String("mediaProvider", cfg.MediaProvider),
		logger.String("updatePolicy", cfg.MediaUpdatePolicy),
		logger.Int64("maxUploadMB", cfg.MaxUploadSizeMB()))

	return server.New(":"+cfg.Port, server.NewRouter(opts)).Run(ctx)
}
