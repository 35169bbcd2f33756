// Package testutil provides testing utilities for pressadmin.
// This file provides a TestEnv that boots the whole application against a
// local asset server.
package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"pressadmin/internal/app"
	"pressadmin/internal/config"
	"pressadmin/internal/themes"

	// Built-in plugins register themselves with the catalog.
	_ "pressadmin/internal/plugins/markdown"
	_ "pressadmin/internal/plugins/readingtime"
	_ "pressadmin/internal/plugins/seo"

	"go.uber.org/zap"
)

// TestEnv is a running application with its asset server and an HTTP test
// server in front of the API.
type TestEnv struct {
	Assets *AssetServer
	App    *app.App
	API    *httptest.Server
	Config *config.Config
	Logger *zap.Logger
	Dir    string
}

// NewTestEnv creates the environment in dir without starting the app.
// configure may adjust the config before the app is built. Write themes with
// WriteTheme, then call Start.
func NewTestEnv(dir string, configure func(cfg *config.Config)) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()
	assets := NewAssetServer()

	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Assets.BaseURL = assets.URL()
	cfg.Themes.Dir = filepath.Join(dir, "themes")
	cfg.Themes.Watch = false
	cfg.Store.Path = filepath.Join(dir, "data", "pressadmin.db")
	if configure != nil {
		configure(cfg)
	}

	if err := os.MkdirAll(cfg.Themes.Dir, 0755); err != nil {
		assets.Close()
		return nil, fmt.Errorf("failed to create themes dir: %w", err)
	}

	return &TestEnv{
		Assets: assets,
		Config: cfg,
		Logger: logger,
		Dir:    dir,
	}, nil
}

// WriteTheme writes a manifest to themes/<slug>/theme.jsonc.
func (e *TestEnv) WriteTheme(slug, manifest string) error {
	dir := filepath.Join(e.Config.Themes.Dir, slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, themes.ManifestName), []byte(manifest), 0644)
}

// Start builds and starts the application and the API test server.
func (e *TestEnv) Start() error {
	a, err := app.New(e.Config, e.Logger, app.WithConfigDir(e.Dir))
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	if err := a.Start(context.Background()); err != nil {
		a.Stop()
		return fmt.Errorf("failed to start app: %w", err)
	}
	e.App = a
	e.API = httptest.NewServer(a.Handler())
	return nil
}

// Restart stops the application and starts a fresh one on the same config,
// store and themes.
func (e *TestEnv) Restart() error {
	e.stopApp()
	return e.Start()
}

// LiveURL returns the websocket URL of the live feed.
func (e *TestEnv) LiveURL() string {
	return "ws" + strings.TrimPrefix(e.API.URL, "http") + "/api/live"
}

func (e *TestEnv) stopApp() {
	if e.API != nil {
		e.API.Close()
		e.API = nil
	}
	if e.App != nil {
		if err := e.App.Stop(); err != nil {
			e.Logger.Warn("App stopped with errors", zap.Error(err))
		}
		e.App = nil
	}
}

// Cleanup stops all components in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	e.stopApp()
	if e.Assets != nil {
		e.Assets.Close()
	}
}
