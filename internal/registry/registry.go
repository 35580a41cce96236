package registry

import (
	"fmt"
	"slices"
	"strings"
)

// Module is implemented by Go packages that contribute components.
type Module interface {
	Register(r *Registry) error
}

// Registry maps component names to descriptors.
type Registry struct {
	components map[string]Component
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{components: make(map[string]Component)}
}

// Register adds a component. Names are unique and capabilities are required.
func (r *Registry) Register(c Component) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("component name cannot be empty")
	}
	if c.Capabilities == 0 {
		return fmt.Errorf("component '%s' declares no capabilities", c.Name)
	}
	if _, exists := r.components[c.Name]; exists {
		return fmt.Errorf("component '%s' already registered", c.Name)
	}
	r.components[c.Name] = c.Clone()
	return nil
}

// Replace stores c under its name, overwriting any existing descriptor.
func (r *Registry) Replace(c Component) {
	r.components[c.Name] = c.Clone()
}

// Get returns a copy of the named component.
func (r *Registry) Get(name string) (Component, bool) {
	c, ok := r.components[name]
	if !ok {
		return Component{}, false
	}
	return c.Clone(), true
}

// Names returns all component names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Each calls fn with a copy of every component in name order, stopping at
// the first error.
func (r *Registry) Each(fn func(Component) error) error {
	for _, name := range r.Names() {
		if err := fn(r.components[name].Clone()); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	return len(r.components)
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	out := New()
	for name, c := range r.components {
		out.components[name] = c.Clone()
	}
	return out
}

// Equal reports whether both registries hold identical components.
func (r *Registry) Equal(other *Registry) bool {
	if r.Len() != other.Len() {
		return false
	}
	for name, c := range r.components {
		oc, ok := other.components[name]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// RegisterModules registers every module, collecting all failures.
func (r *Registry) RegisterModules(modules ...Module) error {
	var errs []string
	for _, m := range modules {
		if err := m.Register(r); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("module registration failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
