// Package hcl loads pipeline definitions written in HCL into a
// compiler.Pipeline.
//
// A definition is one `pipeline` block plus any number of `param`, `mount`,
// `credentials`, `override`, `build`, `step` and `deploy` blocks, spread
// over one or more files. Step-like blocks are declared in file order, then
// in block order within a file. References such as step.label.categories_map
// or param.images_path are read from expression traversals and are never
// evaluated; `params`, `out_path`, `target` and model keys are evaluated
// against the bound parameters when the pipeline is compiled.
package hcl
