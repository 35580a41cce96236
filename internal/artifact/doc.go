/*
Package artifact defines Ref, the typed handle that wires one step's output
into another step's input.

A Ref is either a step output, written `step.<step>.<output>`, or an
external pipeline parameter, written `param.<name>`. The canonical string
form is what appears in HCL pipeline files and in exported graphs, and Parse
accepts exactly what String produces.
*/
package artifact
