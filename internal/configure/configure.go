package configure

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/registry"
)

// Mutation transforms a component. Implementations must be pure and idempotent.
type Mutation func(registry.Component) registry.Component

// Override sets string key/value configuration on one named component.
type Override struct {
	Component string
	Env       map[string]string
}

// ConfigurationError reports an override whose target is not registered.
type ConfigurationError struct {
	Component string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: override targets component '%s', which is not registered", e.Component)
}

// Configure returns a configured copy of reg. Mutations run over every
// component in name order, then overrides run in the order given. A missing
// override target aborts with *ConfigurationError and no registry.
func Configure(ctx context.Context, reg *registry.Registry, mutations []Mutation, overrides []Override) (*registry.Registry, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring components.", "components", reg.Len(), "mutations", len(mutations), "overrides", len(overrides))

	for _, o := range overrides {
		if _, ok := reg.Get(o.Component); !ok {
			logger.Debug("Override target missing.", "component", o.Component)
			return nil, &ConfigurationError{Component: o.Component}
		}
	}

	out := reg.Clone()
	for _, name := range out.Names() {
		c, _ := out.Get(name)
		for _, m := range mutations {
			c = m(c)
		}
		out.Replace(c)
	}

	for _, o := range overrides {
		c, _ := out.Get(o.Component)
		if c.Env == nil {
			c.Env = make(map[string]string, len(o.Env))
		}
		maps.Copy(c.Env, o.Env)
		out.Replace(c)
		logger.Debug("Applied component override.", "component", o.Component, "keys", sortedKeys(o.Env))
	}

	logger.Debug("Component configuration complete.")
	return out, nil
}

// MountVolume attaches a shared filesystem to every component. A component
// that already carries a mount with the same name is left unchanged.
func MountVolume(name, source, target string) Mutation {
	return func(c registry.Component) registry.Component {
		if c.HasMount(name) {
			return c
		}
		c = c.Clone()
		c.Mounts = append(c.Mounts, registry.Mount{Name: name, Source: source, Target: target})
		return c
	}
}

// SetEnv sets one environment variable on every component.
func SetEnv(key, value string) Mutation {
	return func(c registry.Component) registry.Component {
		c = c.Clone()
		if c.Env == nil {
			c.Env = make(map[string]string)
		}
		c.Env[key] = value
		return c
	}
}

// AttachCredentials records a credential source on every component and
// exposes its values as environment variables.
func AttachCredentials(source string, values map[string]string) Mutation {
	values = maps.Clone(values)
	return func(c registry.Component) registry.Component {
		c = c.Clone()
		if !c.HasCredentials(source) {
			c.Credentials = append(c.Credentials, source)
		}
		if len(values) > 0 {
			if c.Env == nil {
				c.Env = make(map[string]string, len(values))
			}
			maps.Copy(c.Env, values)
		}
		return c
	}
}

// Only restricts a mutation to the named components.
func Only(m Mutation, names ...string) Mutation {
	return func(c registry.Component) registry.Component {
		if !slices.Contains(names, c.Name) {
			return c
		}
		return m(c)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}
