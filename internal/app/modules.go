package app

import (
	"maps"
	"slices"

	"github.com/vk/pipecompile/internal/compiler"
	"github.com/vk/pipecompile/internal/registry"
	"github.com/vk/pipecompile/modules/imageclassification"
)

// coreModules is the definitive list of all modules that are compiled into
// the pipecompile binary.
var coreModules = []registry.Module{
	&imageclassification.Module{},
}

// builtinPipelines maps a name to a pipeline compiled into the binary.
var builtinPipelines = map[string]func() *compiler.Pipeline{
	imageclassification.Name: imageclassification.Pipeline,
}

// BuiltinNames lists the built-in pipelines in sorted order.
func BuiltinNames() []string {
	return slices.Sorted(maps.Keys(builtinPipelines))
}
