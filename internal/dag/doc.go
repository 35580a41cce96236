// Package dag is a small precedence graph keyed by string IDs.
//
// Nodes remember their insertion order, and every query that returns several
// IDs (dependencies, dependents, topological order) is ordered by it, so a
// graph built from the same declarations always produces the same output.
// Edges carry a kind: a data edge records that the target consumes something
// the source produces, an order edge records a pure "run after" constraint.
//
// A Graph is built from a single goroutine. Once construction is finished it
// may be read concurrently.
package dag
