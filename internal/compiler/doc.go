// Package compiler runs one compile: it configures a copy of the component
// registry, binds the run parameters, replays the pipeline's declarations on
// a fresh pipeline.Builder and finalizes the graph.
//
// Compilation is all-or-nothing. Any error returns a nil graph, and nothing
// from one call is visible to the next.
package compiler
