package main

import (
	"fmt"
	"os"

	"pressadmin/internal/config"

	// Built-in plugins register themselves with the catalog.
	_ "pressadmin/internal/plugins/markdown"
	_ "pressadmin/internal/plugins/readingtime"
	_ "pressadmin/internal/plugins/seo"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	version = "dev"
	debug   bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "pressadmin",
	Short:   "Plugin registry and theme loader for the admin console",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultFileName, "path to the config file")
	flags.BoolVar(&debug, "debug", false, "development logging")
	flags.Int("port", 0, "HTTP port")
	flags.Bool("read-only", false, "reject registry and theme changes")
	flags.String("auth-token", "", "bearer token for the API and live feed")
	flags.String("asset-base-url", "", "base URL for relative theme resources")
	flags.String("themes-dir", "", "directory scanned for themes")
	flags.String("default-theme", "", "theme activated when none was saved")
	flags.String("store-path", "", "settings database file")
	flags.StringSlice("plugins", nil, "catalog plugins to register (default all)")
	flags.Bool("tracing", false, "enable tracing")
	flags.String("tracing-exporter", "", "tracing exporter: none, stdout or file")

	bindings := map[string]string{
		"config":           "config",
		"port":             "port",
		"read_only":        "read-only",
		"auth_token":       "auth-token",
		"asset_base_url":   "asset-base-url",
		"themes_dir":       "themes-dir",
		"default_theme":    "default-theme",
		"store_path":       "store-path",
		"plugins":          "plugins",
		"tracing":          "tracing",
		"tracing_exporter": "tracing-exporter",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	viper.SetEnvPrefix("PRESSADMIN")
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, pluginsCmd, themesCmd, watchCmd)
}

// loadConfig reads .env, the config file, then applies flag and
// PRESSADMIN_* overrides.
func loadConfig() (*config.Config, error) {
	cfg, _, err := openConfig()
	return cfg, err
}

func openConfig() (*config.Config, *config.Loader, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	loader := config.NewLoader(viper.GetString("config"), logger)
	if _, err := loader.Load(); err != nil {
		return nil, nil, err
	}

	cfg := loader.Get()
	cfg.Override(viper.GetViper())
	return cfg, loader, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
