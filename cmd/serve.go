package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pressadmin/internal/app"
	"pressadmin/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// reloadInterval is how often the config file is checked for changes.
const reloadInterval = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin API until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, loader, err := openConfig()
		if err != nil {
			return err
		}

		logger.Info("Starting pressadmin",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("read_only", cfg.Server.ReadOnly),
			zap.String("themes_dir", cfg.Themes.Dir),
			zap.String("store", cfg.Store.Path))

		a, err := app.New(cfg, logger, app.WithConfigDir(filepath.Dir(viper.GetString("config"))))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}

		loader.StartAutoReload(reloadInterval, func(next *config.Config) {
			next.Override(viper.GetViper())
			a.ApplyConfig(next)
		})
		defer loader.Stop()

		if cfg.Server.ReadOnly {
			logger.Info("Running in READ-ONLY mode - registry and theme changes are rejected")
		}
		logger.Info("Application running. Press Ctrl+C to exit.")

		<-ctx.Done()

		logger.Info("Shutting down gracefully...")
		return a.Stop()
	},
}
