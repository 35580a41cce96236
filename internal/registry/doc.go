// Package registry holds the component registry the compiler reads from.
//
// A Component is a named, reusable unit of work with a set of capabilities
// (buildable, runnable, deployable) and a configuration surface (base image,
// environment, mounts, credential sources). Components are contributed by Go
// modules implementing Module and by HCL manifests containing `component`
// blocks.
//
// The compiler never mutates a caller's Registry: configuration produces a
// copy (see package configure), so repeated compiles against the same
// registry cannot observe each other.
package registry
