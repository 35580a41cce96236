package registry

import (
	"maps"
	"slices"
)

// Mount attaches a shared filesystem to a component's container.
type Mount struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Component is the descriptor of a registered component.
type Component struct {
	Name         string
	Capabilities Capability
	// Image is the base container image. A build step in the pipeline
	// supersedes it with its image output.
	Image       string
	Env         map[string]string
	Mounts      []Mount
	Credentials []string
	Labels      map[string]string
}

// Clone returns a deep copy of c.
func (c Component) Clone() Component {
	out := c
	out.Env = maps.Clone(c.Env)
	out.Mounts = slices.Clone(c.Mounts)
	out.Credentials = slices.Clone(c.Credentials)
	out.Labels = maps.Clone(c.Labels)
	return out
}

// HasMount reports whether a mount with the given name is attached.
func (c Component) HasMount(name string) bool {
	return slices.ContainsFunc(c.Mounts, func(m Mount) bool { return m.Name == name })
}

// HasCredentials reports whether the named credential source is attached.
func (c Component) HasCredentials(source string) bool {
	return slices.Contains(c.Credentials, source)
}

// Equal reports whether two components carry the same configuration.
func (c Component) Equal(other Component) bool {
	return c.Name == other.Name &&
		c.Capabilities == other.Capabilities &&
		c.Image == other.Image &&
		maps.Equal(c.Env, other.Env) &&
		slices.Equal(c.Mounts, other.Mounts) &&
		slices.Equal(c.Credentials, other.Credentials) &&
		maps.Equal(c.Labels, other.Labels)
}
