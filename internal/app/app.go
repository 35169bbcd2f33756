// Package app wires the registry, theme loader, persistence, live feed and
// HTTP API into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"pressadmin/internal/activity"
	"pressadmin/internal/api"
	"pressadmin/internal/clock"
	"pressadmin/internal/config"
	"pressadmin/internal/live"
	"pressadmin/internal/store"
	"pressadmin/internal/themes"
	"pressadmin/internal/tracing"
	"pressadmin/pkg/plugin"
	"pressadmin/pkg/theme"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Option customizes an App before it is built.
type Option func(*options)

type options struct {
	clock     clock.Clock
	catalog   *plugin.Catalog
	fetcher   theme.Fetcher
	configDir string
}

// WithClock replaces the real clock.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithCatalog replaces the global plugin catalog.
func WithCatalog(c *plugin.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithFetcher replaces the HTTP asset fetcher.
func WithFetcher(f theme.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithConfigDir sets the directory handed to plugin factories.
func WithConfigDir(dir string) Option {
	return func(o *options) { o.configDir = dir }
}

// App owns every long-lived component.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  clock.Clock

	tracing   *tracing.Provider
	db        *store.DB
	settings  *store.Settings
	container *plugin.Container
	registry  *plugin.Registry
	catalog   *plugin.Catalog
	pluginCtx *plugin.Context
	themes    *themes.Catalog
	document  *theme.Document
	fetcher   *theme.HTTPFetcher
	loader    *theme.Loader
	activity  *activity.Tracker
	hub       *live.Hub
	api       *api.Server

	settingsMu     sync.RWMutex
	pluginSettings map[string]map[string]any

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds every component. Nothing runs until Start.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", multierr.Combine(errs...))
	}

	o := options{
		clock:     clock.NewRealClock(),
		catalog:   plugin.Global(),
		configDir: ".",
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		clock:          o.clock,
		catalog:        o.catalog,
		pluginSettings: cfg.Plugins.Settings,
	}

	var err error
	a.tracing, err = tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	a.db, err = store.Open(cfg.Store.Path)
	if err != nil {
		return nil, multierr.Append(err, a.tracing.Shutdown(context.Background()))
	}
	a.settings = store.NewSettings(a.db)

	a.container = plugin.NewContainer()
	a.registry = plugin.NewRegistry(a.container, logger, a.clock)
	a.pluginCtx = plugin.NewContext(a.container, logger, nil, cfg.Server.ReadOnly, o.configDir)
	a.pluginCtx.Settings = a.settingsFor

	a.themes = themes.NewCatalog(cfg.Themes.Dir, logger)
	a.document = theme.NewDocument()

	fetcher := o.fetcher
	if fetcher == nil {
		a.fetcher, err = theme.NewHTTPFetcher(cfg.Assets.BaseURL, cfg.Assets.CacheTTL, nil, logger)
		if err != nil {
			return nil, multierr.Combine(err, a.db.Close(), a.tracing.Shutdown(context.Background()))
		}
		fetcher = a.fetcher
	}
	port := theme.NewDocumentPort(a.document, fetcher, logger, cfg.Assets.LoadTimeout)
	a.loader = theme.NewLoader(port, theme.Default(), logger, a.tracing.Tracer())

	a.activity = activity.NewTracker(a.clock, logger, cfg.Activity.Capacity)

	token := ""
	if cfg.Auth.Enabled {
		token = cfg.Auth.Token
	}
	a.hub = live.NewHub(a.registry, a.loader, token, logger)

	a.api = api.NewServer(api.Deps{
		Registry:      a.registry,
		Catalog:       a.catalog,
		PluginContext: a.pluginCtx,
		Loader:        a.loader,
		Themes:        a.themes,
		Document:      a.document,
		Settings:      a.settings,
		Activity:      a.activity,
		Live:          a.hub,
		Clock:         a.clock,
	}, api.Options{
		Port:              cfg.Server.Port,
		ReadOnly:          cfg.Server.ReadOnly,
		Token:             token,
		AllowLoopback:     true,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		ActivationTimeout: 2 * cfg.Assets.LoadTimeout,
	}, logger)

	return a, nil
}

// Start registers plugins, restores the active theme and starts serving.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.RegisterPlugins()

	if err := a.themes.Load(); err != nil {
		a.logger.Warn("Failed to load theme catalog", zap.Error(err))
	}
	a.restoreTheme(ctx)

	if a.cfg.Themes.Watch {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.themes.Watch(runCtx, themes.DefaultDebounce, func() { a.onThemesChanged(runCtx) }); err != nil {
				a.logger.Error("Theme watcher stopped", zap.Error(err))
			}
		}()
	}

	return a.api.Start()
}

// RegisterPlugins registers the enabled catalog plugins in startup order,
// skipping those an admin unregistered and those already registered. Only
// plugins about to register are built, so live services are never replaced.
// A plugin that fails does not stop the rest.
func (a *App) RegisterPlugins() {
	disabled, err := a.settings.DisabledPlugins()
	if err != nil {
		a.logger.Warn("Failed to read plugin overrides", zap.Error(err))
	}

	for _, info := range a.catalog.List() {
		if !a.cfg.PluginEnabled(info.Name) {
			continue
		}
		if slices.Contains(disabled, info.Name) {
			a.logger.Info("Skipping plugin disabled by admin", zap.String("plugin", info.Name))
			continue
		}
		if _, registered := a.registry.Get(info.Name); registered {
			continue
		}

		d, err := a.catalog.Build(a.pluginCtx, info.Name)
		if err != nil {
			a.activity.Record(info.Name, activity.ActionPluginFailed, err.Error(), nil)
			a.logger.Error("Failed to build plugin", zap.String("plugin", info.Name), zap.Error(err))
			continue
		}

		err = a.registry.RegisterPlugin(d)
		switch {
		case err == nil:
			a.activity.Record(d.Name, activity.ActionPluginRegistered, "startup", nil)
		case errors.Is(err, plugin.ErrInitialization):
			a.activity.Record(d.Name, activity.ActionPluginFailed, err.Error(), nil)
			a.logger.Warn("Plugin failed to initialize", zap.String("plugin", d.Name), zap.Error(err))
		default:
			a.activity.Record(d.Name, activity.ActionPluginRejected, err.Error(), nil)
			a.logger.Warn("Plugin rejected", zap.String("plugin", d.Name), zap.Error(err))
		}
	}

	a.logger.Info("Plugins registered", zap.Strings("plugins", a.registry.Names()))
}

// restoreTheme activates the persisted theme, falling back to the configured
// default. Failures leave the built-in theme active.
func (a *App) restoreTheme(ctx context.Context) {
	name, err := a.settings.ActiveTheme()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("Failed to read active theme", zap.Error(err))
		}
		name = a.cfg.Themes.Default
	}
	if name == "" || name == theme.Default().Name {
		return
	}

	d, err := a.themes.Get(name)
	if err != nil {
		a.logger.Warn("Saved theme is not installed", zap.String("theme", name), zap.Error(err))
		return
	}
	a.activate(ctx, d, "startup")
}

func (a *App) activate(ctx context.Context, d theme.Descriptor, reason string) {
	if err := a.loader.ActivateTheme(ctx, d); err != nil {
		a.activity.Record(d.Name, activity.ActionThemeFailed, err.Error(), nil)
		a.logger.Warn("Theme activation failed", zap.String("theme", d.Name), zap.Error(err))
		return
	}
	a.activity.Record(d.Name, activity.ActionThemeActivated, reason, nil)
}

// onThemesChanged re-activates the active theme when its manifest changed
// its resources on disk.
func (a *App) onThemesChanged(ctx context.Context) {
	active := a.loader.ActiveTheme()
	d, err := a.themes.Get(active.Name)
	if err != nil {
		return
	}
	if slices.Equal(d.Styles, active.Styles) && slices.Equal(d.Scripts, active.Scripts) {
		return
	}

	a.logger.Info("Active theme changed on disk, reloading", zap.String("theme", d.Name))
	if a.fetcher != nil {
		a.fetcher.Forget()
	}

	activateCtx, cancel := context.WithTimeout(ctx, 2*a.cfg.Assets.LoadTimeout)
	defer cancel()
	a.activate(activateCtx, d, "manifest changed")
}

// ApplyConfig takes plugin settings from a reloaded config. Plugins built
// afterwards, through the API or the next start, see the new values; plugins
// already registered keep theirs.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.settingsMu.Lock()
	a.pluginSettings = cfg.Plugins.Settings
	a.settingsMu.Unlock()

	a.logger.Info("Plugin settings reloaded", zap.Int("plugins", len(cfg.Plugins.Settings)))
}

func (a *App) settingsFor(name string) plugin.Settings {
	a.settingsMu.RLock()
	defer a.settingsMu.RUnlock()
	return plugin.Settings(a.pluginSettings[name])
}

// Stop shuts every component down and reports all errors.
func (a *App) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}

	err := a.api.Stop()
	a.hub.Stop()
	a.wg.Wait()

	a.loader.Close()
	a.registry.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = multierr.Append(err, a.tracing.Shutdown(ctx))
	err = multierr.Append(err, a.db.Close())
	return err
}

// Handler returns the HTTP handler, for tests that skip the listener.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Registry returns the plugin registry.
func (a *App) Registry() *plugin.Registry {
	return a.registry
}

// Loader returns the theme loader.
func (a *App) Loader() *theme.Loader {
	return a.loader
}

// Document returns the host document model.
func (a *App) Document() *theme.Document {
	return a.document
}

// Activity returns the activity tracker.
func (a *App) Activity() *activity.Tracker {
	return a.activity
}

// Settings returns the persisted settings store.
func (a *App) Settings() *store.Settings {
	return a.settings
}
