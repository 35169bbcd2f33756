package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleConfig = `server:
  port: 9090
  read_only: true
auth:
  enabled: true
  token: "s3cret"
assets:
  base_url: "https://cdn.example.com/themes/"
  cache_ttl: 10m
themes:
  dir: "/srv/themes"
  default: "Twenty"
plugins:
  enabled: [markdown, seo]
  settings:
    readingtime:
      wpm: 180
store:
  path: "/var/lib/pressadmin/settings.db"
tracing:
  enabled: true
  exporter: stdout
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader(writeConfig(t, sampleConfig), zap.NewNop())

	changed, err := loader.Load()
	require.NoError(t, err)
	assert.True(t, changed)

	cfg := loader.Get()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.ReadOnly)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout, "defaults survive partial files")
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.Token)
	assert.Equal(t, 10*time.Minute, cfg.Assets.CacheTTL)
	assert.Equal(t, "/srv/themes", cfg.Themes.Dir)
	assert.Equal(t, "Twenty", cfg.Themes.Default)
	assert.Equal(t, []string{"markdown", "seo"}, cfg.Plugins.Enabled)
	assert.Equal(t, 180, cfg.Plugins.Settings["readingtime"]["wpm"])
	assert.Equal(t, "/var/lib/pressadmin/settings.db", cfg.Store.Path)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.Validate())

	changed, err = loader.Load()
	require.NoError(t, err)
	assert.False(t, changed, "unchanged file is not reported as a change")
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), nil)

	changed, err := loader.Load()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, Default(), loader.Get())
}

func TestLoader_InvalidYAML(t *testing.T) {
	loader := NewLoader(writeConfig(t, "server: [unclosed"), zap.NewNop())

	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoader_AutoReload(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 1000\n")
	loader := NewLoader(path, zap.NewNop())
	_, err := loader.Load()
	require.NoError(t, err)

	reloaded := make(chan *Config, 1)
	loader.StartAutoReload(10*time.Millisecond, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	defer loader.Stop()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 2000\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 2000, cfg.Server.Port)
	case <-time.After(2 * time.Second):
		t.Fatal("config was not reloaded")
	}

	// Stop is idempotent.
	loader.Stop()
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr int
	}{
		{"defaults are valid", func(c *Config) {}, 0},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, 1},
		{"auth without token", func(c *Config) { c.Auth.Enabled = true }, 1},
		{"relative base url", func(c *Config) { c.Assets.BaseURL = "assets/" }, 1},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "otlp" }, 1},
		{"every problem reported", func(c *Config) {
			c.Themes.Dir = ""
			c.Store.Path = ""
			c.Assets.CacheTTL = -time.Second
		}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Len(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfig_PluginEnabled(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.PluginEnabled("anything"), "nil list enables every plugin")

	cfg.Plugins.Enabled = []string{"markdown"}
	assert.True(t, cfg.PluginEnabled("markdown"))
	assert.False(t, cfg.PluginEnabled("seo"))
}

func TestConfig_Override(t *testing.T) {
	cfg := Default()
	v := viper.New()
	v.Set("port", 7070)
	v.Set("auth_token", "tok")
	v.Set("plugins", []string{"readingtime"})
	v.Set("read_only", true)

	cfg.Override(v)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "tok", cfg.Auth.Token)
	assert.Equal(t, []string{"readingtime"}, cfg.Plugins.Enabled)
	assert.True(t, cfg.Server.ReadOnly)
	assert.Equal(t, "themes", cfg.Themes.Dir, "unset keys keep file values")

	v.Set("plugins", "markdown, seo")
	cfg.Override(v)
	assert.Equal(t, []string{"markdown", "seo"}, cfg.Plugins.Enabled)
}
