package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pressadmin/internal/live"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchURL string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log plugin and theme snapshots from a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := live.NewClient(watchURL, cfg.Auth.Token, logger)
		client.On(live.TypePlugins, func(msg live.Message) {
			names := make([]string, 0, len(msg.Plugins))
			for _, meta := range msg.Plugins {
				names = append(names, meta.Descriptor.Name)
			}
			logger.Info("Plugins changed", zap.Strings("plugins", names))
		})
		client.On(live.TypeTheme, func(msg live.Message) {
			if msg.Theme == nil {
				return
			}
			logger.Info("Theme changed",
				zap.String("theme", msg.Theme.Name),
				zap.Strings("styles", msg.Theme.Styles),
				zap.Strings("scripts", msg.Theme.Scripts))
		})

		if err := client.Connect(); err != nil {
			return err
		}
		defer client.Disconnect()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "ws://localhost:8080/api/live", "live feed URL")
}
