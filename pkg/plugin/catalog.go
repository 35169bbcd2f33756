package plugin

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Catalog priorities. When two packages compiled into the same binary
// claim one plugin name, the catalog keeps the higher priority entry.
const (
	// PriorityDefault is what the bundled markdown, seo and readingtime
	// plugins use.
	PriorityDefault = 0

	// PriorityOverride is for a site build that ships its own variant of a
	// bundled plugin under the same name.
	PriorityOverride = 100
)

// DefaultOrder is the startup position of an entry that leaves Order unset.
const DefaultOrder = 50

// Factory turns a catalog entry into a Descriptor for the Registry. It runs
// each time the plugin is about to register, at startup or through the API,
// and puts the services the descriptor lists into ctx.Container.
type Factory func(ctx *Context) (Descriptor, error)

// PluginInfo is what a plugin package hands the catalog from init(). It is
// not registered with the Registry until the app or an admin asks for it.
type PluginInfo struct {
	// Name becomes the Descriptor name and the /api/plugins/{name} key.
	Name string

	// Description is shown by GET /api/catalog and `pressadmin plugins`.
	Description string

	// Priority resolves two entries with the same Name.
	Priority int

	// Factory builds the Descriptor.
	Factory Factory

	// Order is the startup position. The Registry rejects a plugin whose
	// dependencies are not registered yet, so dependents need a larger Order
	// than what they depend on.
	Order int
}

// Catalog lists the plugins an admin can register. It only knows how to
// build descriptors; whether a plugin is live is the Registry's business.
type Catalog struct {
	mu      sync.RWMutex
	plugins map[string]PluginInfo
	order   []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		plugins: make(map[string]PluginInfo),
		order:   make([]string, 0),
	}
}

// Register adds info. A lower-priority entry for a name already present is
// ignored; an equal or higher one replaces it and keeps its listing slot.
func (c *Catalog) Register(info PluginInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	if info.Factory == nil {
		return fmt.Errorf("plugin %s: factory cannot be nil", info.Name)
	}

	if info.Order == 0 {
		info.Order = DefaultOrder
	}

	existing, exists := c.plugins[info.Name]
	if exists {
		if info.Priority < existing.Priority {
			zap.L().Debug("Catalog entry shadowed by higher priority",
				zap.String("plugin", info.Name),
				zap.Int("priority", info.Priority),
				zap.Int("existing_priority", existing.Priority))
			return nil
		}

		zap.L().Debug("Catalog entry replaced",
			zap.String("plugin", info.Name),
			zap.Int("from_priority", existing.Priority),
			zap.Int("to_priority", info.Priority))
	}

	c.plugins[info.Name] = info

	if !exists {
		c.order = append(c.order, info.Name)
	}

	zap.L().Debug("Catalog entry registered",
		zap.String("plugin", info.Name),
		zap.Int("priority", info.Priority),
		zap.Int("order", info.Order))

	return nil
}

// Get returns a copy of the entry for name, or nil when the catalog has none.
func (c *Catalog) Get(name string) *PluginInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.plugins[name]
	if !ok {
		return nil
	}
	return &info
}

// List returns the entries in startup order: by Order, ties by name.
func (c *Catalog) List() []PluginInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]PluginInfo, 0, len(c.plugins))
	for _, name := range c.order {
		result = append(result, c.plugins[name])
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// Build runs the factory for name. Name and Description fall back to the
// entry's values when the factory leaves them empty.
func (c *Catalog) Build(ctx *Context, name string) (Descriptor, error) {
	info := c.Get(name)
	if info == nil {
		return Descriptor{}, &NotFoundError{Name: name}
	}

	d, err := info.Factory(ctx)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to create plugin %s: %w", name, err)
	}
	if d.Name == "" {
		d.Name = info.Name
	}
	if d.Description == "" {
		d.Description = info.Description
	}
	return d, nil
}

// Descriptors builds every entry named in enabled, in startup order, and
// stops at the first factory error. A nil enabled list means all entries.
func (c *Catalog) Descriptors(ctx *Context, enabled []string) ([]Descriptor, error) {
	var allow map[string]bool
	if enabled != nil {
		allow = make(map[string]bool, len(enabled))
		for _, name := range enabled {
			allow[name] = true
		}
	}

	var result []Descriptor
	for _, info := range c.List() {
		if allow != nil && !allow[info.Name] {
			continue
		}
		d, err := c.Build(ctx, info.Name)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	return result, nil
}

// Names returns entry names in the order their packages registered them.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.order))
	copy(result, c.order)
	return result
}

// Clear empties the catalog.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.plugins = make(map[string]PluginInfo)
	c.order = make([]string, 0)
}

// globalCatalog is filled by the blank imports of internal/plugins/... in
// cmd and pkg/testutil.
var globalCatalog = NewCatalog()

// Register adds info to the global catalog. Plugin packages call it from
// init().
func Register(info PluginInfo) error {
	return globalCatalog.Register(info)
}

// Get looks name up in the global catalog.
func Get(name string) *PluginInfo {
	return globalCatalog.Get(name)
}

// List returns the global catalog in startup order.
func List() []PluginInfo {
	return globalCatalog.List()
}

// Names returns the global catalog's names in registration order.
func Names() []string {
	return globalCatalog.Names()
}

// Global returns the catalog the app registers plugins from by default.
func Global() *Catalog {
	return globalCatalog
}

// ClearGlobal empties the global catalog.
func ClearGlobal() {
	globalCatalog.Clear()
}
