// Package export turns a compiled pipeline.Graph into a self-contained
// document for an execution engine and encodes it as JSON or YAML.
package export
