package plugin

import (
	"go.uber.org/zap"
)

// Settings holds a plugin's free-form configuration values.
type Settings map[string]any

// Int returns the integer setting key, or def when absent or not numeric.
// YAML and JSON decoders produce int, int64 or float64 for numbers.
func (s Settings) Int(key string, def int) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String returns the string setting key, or def when absent.
func (s Settings) String(key, def string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return def
}

// Context provides dependencies to plugin factories when the catalog builds
// descriptors.
type Context struct {
	// Container is where factories provide the services their plugin
	// declares. The registry resolves them from here at registration.
	Container *Container

	// Logger is a structured logger for the plugin to use.
	// Plugins should use logger.Named("pluginname") for namespacing.
	Logger *zap.Logger

	// Settings returns the configured settings for a plugin by name.
	Settings func(name string) Settings

	// ReadOnly indicates whether the admin is in read-only mode.
	// Hooks with side effects should log instead of acting.
	ReadOnly bool

	// ConfigDir is the path to the configuration directory.
	ConfigDir string
}

// NewContext creates a new plugin context with all required dependencies.
func NewContext(
	container *Container,
	logger *zap.Logger,
	settings map[string]map[string]any,
	readOnly bool,
	configDir string,
) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		Container: container,
		Logger:    logger,
		Settings: func(name string) Settings {
			return Settings(settings[name])
		},
		ReadOnly:  readOnly,
		ConfigDir: configDir,
	}
}

// SettingsFor returns the settings for the named plugin, never nil.
func (c *Context) SettingsFor(name string) Settings {
	if c == nil || c.Settings == nil {
		return Settings{}
	}
	if s := c.Settings(name); s != nil {
		return s
	}
	return Settings{}
}
