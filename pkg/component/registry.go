package component

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the component templates available to the resolver. It is
// passed explicitly into resolution so that independent graphs and tests can
// use independent registries.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*Component
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]*Component),
	}
}

// Register adds a component template to the registry after validating its
// declarations. Registering the same name twice is an error: templates are
// read-only once published.
func (r *Registry) Register(c *Component) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[c.Name]; exists {
		return fmt.Errorf("component %s already registered", c.Name)
	}
	r.components[c.Name] = c
	return nil
}

// MustRegister registers a component and panics on error. Intended for
// builtin libraries registered at startup.
func (r *Registry) MustRegister(c *Component) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Lookup returns the component registered under name.
func (r *Registry) Lookup(name string) (*Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Names returns the registered component names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
