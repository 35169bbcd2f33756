package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pressadmin/internal/tracing"

	"github.com/spf13/viper"
)

// Config is the pressadmin.yaml structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Assets   AssetsConfig   `yaml:"assets"`
	Themes   ThemesConfig   `yaml:"themes"`
	Plugins  PluginsConfig  `yaml:"plugins"`
	Store    StoreConfig    `yaml:"store"`
	Activity ActivityConfig `yaml:"activity"`
	Tracing  tracing.Config `yaml:"tracing"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadOnly        bool          `yaml:"read_only"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures bearer-token checks on the API and live feed.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// AssetsConfig configures how theme resources are resolved and fetched.
type AssetsConfig struct {
	BaseURL     string        `yaml:"base_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
}

// ThemesConfig configures the theme catalog.
type ThemesConfig struct {
	Dir     string `yaml:"dir"`
	Default string `yaml:"default"`
	Watch   bool   `yaml:"watch"`
}

// PluginsConfig selects catalog plugins and their settings.
type PluginsConfig struct {
	// Enabled lists plugins registered at startup. Omitted means all.
	Enabled  []string                  `yaml:"enabled"`
	Settings map[string]map[string]any `yaml:"settings"`
}

// StoreConfig configures the settings database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ActivityConfig configures the activity log.
type ActivityConfig struct {
	Capacity int `yaml:"capacity"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 5 * time.Second,
		},
		Assets: AssetsConfig{
			CacheTTL:    5 * time.Minute,
			LoadTimeout: 15 * time.Second,
		},
		Themes: ThemesConfig{
			Dir:   "themes",
			Watch: true,
		},
		Plugins: PluginsConfig{
			Settings: map[string]map[string]any{},
		},
		Store: StoreConfig{
			Path: "data/pressadmin.db",
		},
		Activity: ActivityConfig{
			Capacity: 200,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		errs = append(errs, errors.New("auth.token is required when auth.enabled is true"))
	}
	if c.Assets.BaseURL != "" {
		u, err := url.Parse(c.Assets.BaseURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("assets.base_url: %w", err))
		} else if !u.IsAbs() {
			errs = append(errs, fmt.Errorf("assets.base_url %q must be absolute", c.Assets.BaseURL))
		}
	}
	if c.Assets.CacheTTL < 0 {
		errs = append(errs, errors.New("assets.cache_ttl must not be negative"))
	}
	if c.Themes.Dir == "" {
		errs = append(errs, errors.New("themes.dir is required"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "file":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not supported", c.Tracing.Exporter))
	}

	return errs
}

// PluginEnabled reports whether name should be registered at startup.
func (c *Config) PluginEnabled(name string) bool {
	if c.Plugins.Enabled == nil {
		return true
	}
	for _, n := range c.Plugins.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// Override applies values set in v (flags, PRESSADMIN_* environment) over
// the file values.
func (c *Config) Override(v *viper.Viper) {
	if v.IsSet("port") {
		c.Server.Port = v.GetInt("port")
	}
	if v.IsSet("read_only") {
		c.Server.ReadOnly = v.GetBool("read_only")
	}
	if v.IsSet("auth_token") {
		c.Auth.Token = v.GetString("auth_token")
		c.Auth.Enabled = c.Auth.Token != ""
	}
	if v.IsSet("asset_base_url") {
		c.Assets.BaseURL = v.GetString("asset_base_url")
	}
	if v.IsSet("themes_dir") {
		c.Themes.Dir = v.GetString("themes_dir")
	}
	if v.IsSet("default_theme") {
		c.Themes.Default = v.GetString("default_theme")
	}
	if v.IsSet("store_path") {
		c.Store.Path = v.GetString("store_path")
	}
	if v.IsSet("plugins") {
		c.Plugins.Enabled = splitList(v.GetStringSlice("plugins"))
	}
	if v.IsSet("tracing") {
		c.Tracing.Enabled = v.GetBool("tracing")
	}
	if v.IsSet("tracing_exporter") {
		c.Tracing.Exporter = v.GetString("tracing_exporter")
	}
}

// splitList flattens comma-separated entries, as PRESSADMIN_PLUGINS arrives
// as a single string.
func splitList(values []string) []string {
	result := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}
