// Package configure applies cross-cutting configuration to every component
// of a registry before any step is declared.
//
// Configuration is a fold: an ordered list of pure Mutation functions is
// applied to each component, followed by named Overrides for specific
// components. Configure always works on a copy, so the caller's registry is
// left untouched and applying the same configuration twice yields the same
// result as applying it once.
package configure
