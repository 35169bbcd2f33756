package plugin

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"pressadmin/internal/clock"
	"pressadmin/pkg/observable"

	"go.uber.org/zap"
)

// hookEntry is one callback in the hook table, tagged with the plugin that
// contributed it so the plugin's callbacks can be removed as a unit.
type hookEntry struct {
	plugin string
	fn     HookFunc
}

// Registry is the runtime source of truth for which plugins are active and
// which hook callbacks they contribute.
//
// Checks always run before mutation: a rejected registration or
// unregistration leaves the registry untouched.
type Registry struct {
	mu      sync.RWMutex
	lookup  Lookup
	logger  *zap.Logger
	clock   clock.Clock
	plugins map[string]Metadata
	order   []string
	hooks   map[string][]hookEntry

	snapshots *observable.Value[map[string]Metadata]
}

// NewRegistry creates an empty registry that resolves plugin services
// through lookup.
func NewRegistry(lookup Lookup, logger *zap.Logger, clk clock.Clock) *Registry {
	if lookup == nil {
		lookup = LookupFunc(func(id ServiceID) (any, error) {
			return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
		})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}

	return &Registry{
		lookup:    lookup,
		logger:    logger.Named("plugins"),
		clock:     clk,
		plugins:   make(map[string]Metadata),
		order:     make([]string, 0),
		hooks:     make(map[string][]hookEntry),
		snapshots: observable.New(map[string]Metadata{},
			observable.WithClone(maps.Clone[map[string]Metadata])),
	}
}

// RegisterPlugin validates d and records it.
//
// A duplicate name or a missing dependency rejects the call without any
// mutation. A failing service lookup records the plugin in the failed state
// (Enabled and Loaded false, Error set) and returns *InitializationError; no
// hooks are merged for it. On success the plugin's hooks are appended to the
// hook table, hook names in sorted order and callbacks in declared order.
func (r *Registry) RegisterPlugin(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[d.Name]; exists {
		r.logger.Warn("Plugin registration rejected: duplicate name",
			zap.String("plugin", d.Name))
		return &DuplicateError{Name: d.Name}
	}

	var missing []string
	for _, dep := range d.Dependencies {
		if _, ok := r.plugins[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		r.logger.Warn("Plugin registration rejected: missing dependencies",
			zap.String("plugin", d.Name),
			zap.Strings("missing", missing))
		return &MissingDependencyError{Plugin: d.Name, Missing: missing}
	}

	meta := Metadata{
		Descriptor:   d,
		Services:     make(map[ServiceID]any, len(d.Services)),
		RegisteredAt: r.clock.Now(),
	}

	for _, id := range d.Services {
		svc, err := r.lookup.Lookup(id)
		if err != nil {
			initErr := &InitializationError{Plugin: d.Name, Service: id, Err: err}
			meta.Error = initErr.Error()
			meta.Services = nil
			r.record(meta)

			r.logger.Error("Plugin service initialization failed",
				zap.String("plugin", d.Name),
				zap.String("service", string(id)),
				zap.Error(err))
			return initErr
		}
		meta.Services[id] = svc
	}

	meta.Enabled = true
	meta.Loaded = true
	r.record(meta)

	hookNames := d.HookNames()
	sort.Strings(hookNames)
	for _, hook := range hookNames {
		for _, fn := range d.Hooks[hook] {
			if fn == nil {
				continue
			}
			r.hooks[hook] = append(r.hooks[hook], hookEntry{plugin: d.Name, fn: fn})
		}
	}

	r.logger.Info("Plugin registered",
		zap.String("plugin", d.Name),
		zap.String("version", d.Version),
		zap.Strings("hooks", hookNames),
		zap.Int("services", len(d.Services)))

	return nil
}

// record stores meta and publishes a new snapshot. Callers hold the write lock.
func (r *Registry) record(meta Metadata) {
	if _, exists := r.plugins[meta.Descriptor.Name]; !exists {
		r.order = append(r.order, meta.Descriptor.Name)
	}
	r.plugins[meta.Descriptor.Name] = meta
	r.publish()
}

// UnregisterPlugin removes the plugin's metadata and every hook callback it
// contributed. Callbacks from other plugins keep their relative order.
func (r *Registry) UnregisterPlugin(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; !exists {
		return &NotFoundError{Name: name}
	}

	delete(r.plugins, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	removed := 0
	for hook, entries := range r.hooks {
		kept := entries[:0:0]
		for _, e := range entries {
			if e.plugin == name {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(r.hooks, hook)
		} else {
			r.hooks[hook] = kept
		}
	}

	r.publish()

	r.logger.Info("Plugin unregistered",
		zap.String("plugin", name),
		zap.Int("hooks_removed", removed))

	return nil
}

// publish pushes a copy of the metadata map. Callers hold the write lock, so
// snapshots reach subscribers in mutation order.
func (r *Registry) publish() {
	r.snapshots.Set(r.snapshotLocked())
}

func (r *Registry) snapshotLocked() map[string]Metadata {
	snap := make(map[string]Metadata, len(r.plugins))
	for name, meta := range r.plugins {
		snap[name] = meta
	}
	return snap
}

// Plugins returns a copy of the current name to metadata snapshot. It is
// empty, not nil, before any registration.
func (r *Registry) Plugins() map[string]Metadata {
	return r.snapshots.Get()
}

// Watch delivers the current snapshot immediately and a fresh snapshot after
// every mutation, in order, until ctx is done. Each delivery is the
// subscriber's own copy.
func (r *Registry) Watch(ctx context.Context) <-chan map[string]Metadata {
	return r.snapshots.Subscribe(ctx)
}

// Get returns the metadata recorded for name.
func (r *Registry) Get(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.plugins[name]
	return meta, ok
}

// Names returns plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Hooks returns the number of callbacks registered per hook name.
func (r *Registry) Hooks() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]int, len(r.hooks))
	for hook, entries := range r.hooks {
		result[hook] = len(entries)
	}
	return result
}

// ExecuteHook invokes every callback registered under name in registration
// order, forwarding args positionally, and returns their results in order.
// An unknown hook yields an empty slice and no error.
//
// The first failing callback stops the run: the results gathered so far are
// returned together with a *HookError. A panicking callback is reported the
// same way. Callbacks run without the registry lock held, so they may read
// the registry or execute other hooks.
func (r *Registry) ExecuteHook(name string, args ...any) ([]any, error) {
	r.mu.RLock()
	entries := make([]hookEntry, len(r.hooks[name]))
	copy(entries, r.hooks[name])
	r.mu.RUnlock()

	results := make([]any, 0, len(entries))
	for _, e := range entries {
		result, err := invoke(e, args)
		if err != nil {
			hookErr := &HookError{Hook: name, Plugin: e.plugin, Err: err}
			r.logger.Warn("Hook callback failed",
				zap.String("hook", name),
				zap.String("plugin", e.plugin),
				zap.Error(err))
			return results, hookErr
		}
		results = append(results, result)
	}

	return results, nil
}

func invoke(e hookEntry, args []any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return e.fn(args...)
}

// Close ends all Watch subscriptions.
func (r *Registry) Close() {
	r.snapshots.Close()
}
