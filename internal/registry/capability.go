package registry

import (
	"fmt"
	"strings"
)

// Capability is a bit set of operations a component supports.
type Capability uint8

const (
	Buildable Capability = 1 << iota
	Runnable
	Deployable
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{Buildable, "build"},
	{Runnable, "run"},
	{Deployable, "deploy"},
}

// Has reports whether every bit of want is set.
func (c Capability) Has(want Capability) bool {
	return want != 0 && c&want == want
}

// String renders the set as a comma separated list, e.g. "build,run".
func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, cn := range capabilityNames {
		if c&cn.cap != 0 {
			parts = append(parts, cn.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseCapability converts a single capability name.
func ParseCapability(name string) (Capability, error) {
	for _, cn := range capabilityNames {
		if strings.EqualFold(strings.TrimSpace(name), cn.name) {
			return cn.cap, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q: must be 'build', 'run' or 'deploy'", name)
}

// ParseCapabilities folds a list of capability names into a set.
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
	for _, n := range names {
		one, err := ParseCapability(n)
		if err != nil {
			return 0, err
		}
		c |= one
	}
	return c, nil
}
