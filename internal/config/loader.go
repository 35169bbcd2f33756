// Package config loads pressadmin.yaml and keeps it fresh while the server
// runs.
package config

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the config directory.
const DefaultFileName = "pressadmin.yaml"

// Loader manages configuration file loading and reloading
type Loader struct {
	path     string
	logger   *zap.Logger
	mu       sync.RWMutex
	config   *Config
	raw      []byte
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewLoader creates a new configuration loader for the file at path.
func NewLoader(path string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		path:     path,
		logger:   logger,
		config:   Default(),
		stopChan: make(chan struct{}),
	}
}

// Parse decodes data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Plugins.Settings == nil {
		cfg.Plugins.Settings = map[string]map[string]any{}
	}
	return cfg, nil
}

// Load reads the config file. A missing file leaves the defaults in place.
// It reports whether the file content changed since the last load.
func (l *Loader) Load() (bool, error) {
	l.logger.Debug("Loading config", zap.String("path", l.path))

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		l.logger.Info("Config file not found, using defaults", zap.String("path", l.path))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read config: %w", err)
	}

	l.mu.RLock()
	unchanged := l.raw != nil && bytes.Equal(l.raw, data)
	l.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	cfg, err := Parse(data)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	l.config = cfg
	l.raw = data
	l.mu.Unlock()

	l.logger.Info("Config loaded successfully",
		zap.String("path", l.path),
		zap.Int("port", cfg.Server.Port),
		zap.Strings("plugins", cfg.Plugins.Enabled))
	return true, nil
}

// Get returns the current configuration.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// StartAutoReload re-reads the file every interval and calls onChange with
// the new configuration when its content changed.
func (l *Loader) StartAutoReload(interval time.Duration, onChange func(*Config)) {
	l.logger.Info("Starting config auto-reload", zap.Duration("interval", interval))

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				changed, err := l.Load()
				if err != nil {
					l.logger.Error("Failed to auto-reload config", zap.Error(err))
					continue
				}
				if changed && onChange != nil {
					onChange(l.Get())
				}

			case <-l.stopChan:
				l.logger.Info("Stopping config auto-reload")
				return
			}
		}
	}()
}

// Stop stops the auto-reload goroutine.
func (l *Loader) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}
