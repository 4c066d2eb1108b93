package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/indiepub/indiepub/pkg/api"
	"github.com/indiepub/indiepub/pkg/auth"
	"github.com/indiepub/indiepub/pkg/config"
	"github.com/indiepub/indiepub/pkg/logger"
	"github.com/indiepub/indiepub/pkg/metrics"
	"github.com/indiepub/indiepub/pkg/storage"
	"github.com/indiepub/indiepub/pkg/storage/fs"
	"github.com/indiepub/indiepub/pkg/storage/sqlite"
)

var (
	configPath string
	address    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Micropub server",
	Long:  `Starts the Micropub and media endpoints and listens for HTTP requests.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Flags are parsed by now; pick up --debug.
		logger.Initialize()

		// Ensure the server shuts down gracefully on Ctrl+C.
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if address != "" {
			cfg.Address = address
		}

		deps, err := buildDeps(ctx, cfg)
		if err != nil {
			return err
		}
		return api.Serve(ctx, deps)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration file")
	serveCmd.Flags().StringVar(&address, "address", "", "Listen address, overriding the configuration file")
}

func buildDeps(ctx context.Context, cfg *config.Config) (api.Deps, error) {
	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		TokenEndpoint:   cfg.TokenEndpoint,
		CacheTTL:        time.Duration(cfg.TokenCacheTTL) * time.Second,
		CACertPath:      cfg.CACertificatePath,
		AllowPrivateIPs: cfg.AllowPrivateIPs,
	}, auth.NewTokenCache())
	if err != nil {
		return api.Deps{}, fmt.Errorf("failed to create token verifier: %w", err)
	}

	store, err := buildContentStore(ctx, cfg)
	if err != nil {
		return api.Deps{}, fmt.Errorf("failed to create content store: %w", err)
	}

	mediaStore, err := fs.NewMediaStore(fs.MediaOptions{
		MediaDir: cfg.Storage.MediaDir,
		BaseURL:  cfg.Storage.MediaBaseURL,
	})
	if err != nil {
		return api.Deps{}, fmt.Errorf("failed to create media store: %w", err)
	}

	return api.Deps{
		Config:   cfg,
		Verifier: verifier,
		Store:    store,
		Media:    mediaStore,
		Metrics:  metrics.NewMetrics(),
	}, nil
}

func buildContentStore(ctx context.Context, cfg *config.Config) (storage.Adapter, error) {
	if cfg.Storage.Backend == config.BackendSQLite {
		return sqlite.New(ctx, sqlite.Options{
			DBPath:  cfg.Storage.DBPath,
			SiteURL: cfg.SiteURL,
		})
	}
	return fs.New(fs.Options{
		ContentDir: cfg.Storage.ContentDir,
		SiteURL:    cfg.SiteURL,
		GitCommit:  cfg.Storage.GitCommit,
	})
}
