/*
Package pipeline turns step declarations into a validated, immutable DAG.

A Builder is created for one compile. Each call to Run, Build or Deploy
declares one StepNode: the builder checks the target component's
capability, claims the step's output names, resolves every artifact.Ref the
step consumes and immediately records a data edge from each producer.
After adds explicit order edges between steps that exchange no data.

Finalize checks the whole graph (it must be acyclic, and every consumed
artifact must come from a step declared earlier) and returns a Graph.
A Graph is never modified after Finalize and is safe for concurrent readers.

Every failure is one of the typed errors in errors.go, so callers can
use errors.As to recover the offending step, output or artifact.
*/
package pipeline
