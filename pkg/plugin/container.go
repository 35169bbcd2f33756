package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a service instance on first lookup.
type Constructor func() (any, error)

// Container is the composition root plugins resolve services from. It
// implements Lookup. Services are singletons created lazily on first lookup;
// a constructor that fails is retried on the next lookup.
type Container struct {
	mu        sync.Mutex
	providers map[ServiceID]Constructor
	instances map[ServiceID]any
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		providers: make(map[ServiceID]Constructor),
		instances: make(map[ServiceID]any),
	}
}

// Provide registers a constructor for id, replacing any previous provider and
// discarding its cached instance.
func (c *Container) Provide(id ServiceID, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.providers[id] = ctor
	delete(c.instances, id)
}

// ProvideValue registers a ready-made instance for id.
func (c *Container) ProvideValue(id ServiceID, value any) {
	c.Provide(id, func() (any, error) { return value, nil })
}

// Lookup returns the instance for id, constructing it if needed.
func (c *Container) Lookup(id ServiceID) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if inst, ok := c.instances[id]; ok {
		return inst, nil
	}

	ctor, ok := c.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}

	inst, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("failed to construct service %s: %w", id, err)
	}
	c.instances[id] = inst
	return inst, nil
}

// IDs returns the registered service IDs in sorted order.
func (c *Container) IDs() []ServiceID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]ServiceID, 0, len(c.providers))
	for id := range c.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
