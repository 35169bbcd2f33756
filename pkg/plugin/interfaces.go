// Package plugin provides the plugin registry, hook table, service container
// and compile-time plugin catalog for the admin application. Built-in plugins
// add themselves to the global catalog from init() functions; the application
// turns enabled catalog entries into Descriptors and registers them with a
// Registry at startup.
package plugin

import "time"

// ServiceID names a service a plugin needs resolved at registration time.
type ServiceID string

// HookFunc is a callback attached to a named hook. The registry does not
// know per-hook argument contracts; each hook documents its own.
type HookFunc func(args ...any) (any, error)

// Lookup resolves service instances for plugins during registration.
// Implementations must not call back into the Registry.
type Lookup interface {
	Lookup(id ServiceID) (any, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(id ServiceID) (any, error)

// Lookup calls f(id).
func (f LookupFunc) Lookup(id ServiceID) (any, error) {
	return f(id)
}

// Descriptor describes a plugin before it is registered. Callers must not
// mutate a Descriptor after handing it to the Registry.
type Descriptor struct {
	// Name is the unique identifier for the plugin.
	Name string `json:"name"`

	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`

	// Dependencies lists plugins that must already be registered.
	Dependencies []string `json:"dependencies,omitempty"`

	// Services lists service IDs resolved through the Lookup when the
	// plugin registers.
	Services []ServiceID `json:"services,omitempty"`

	// Hooks maps hook names to callbacks, in the order they should run.
	Hooks map[string][]HookFunc `json:"-"`
}

// HookNames returns the hook names the descriptor contributes to.
func (d Descriptor) HookNames() []string {
	names := make([]string, 0, len(d.Hooks))
	for name := range d.Hooks {
		names = append(names, name)
	}
	return names
}

// Metadata is the registry's record of a plugin.
type Metadata struct {
	Descriptor Descriptor `json:"descriptor"`

	// Enabled and Loaded are both true after a successful registration and
	// both false when service initialization failed.
	Enabled bool `json:"enabled"`
	Loaded  bool `json:"loaded"`

	// Error describes the initialization failure, if any.
	Error string `json:"error,omitempty"`

	// Services holds the resolved service instances keyed by ID.
	Services map[ServiceID]any `json:"-"`

	RegisteredAt time.Time `json:"registeredAt"`
}

// Failed reports whether the plugin is recorded in the failed state.
func (m Metadata) Failed() bool {
	return m.Error != ""
}

// Service returns a resolved service instance.
func (m Metadata) Service(id ServiceID) (any, bool) {
	svc, ok := m.Services[id]
	return svc, ok
}
