package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// rootSchema lists the top-level blocks in a pipeline file. Blocks outside
// it (component manifests, for instance) are ignored.
var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "pipeline", LabelNames: []string{"name"}},
		{Type: "param", LabelNames: []string{"name"}},
		{Type: "mount", LabelNames: []string{"name"}},
		{Type: "credentials", LabelNames: []string{"name"}},
		{Type: "override", LabelNames: []string{"component"}},
		{Type: "build", LabelNames: []string{"name"}},
		{Type: "step", LabelNames: []string{"name"}},
		{Type: "deploy", LabelNames: []string{"name"}},
	},
}

type pipelineBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

// paramBlock keeps `type` and `default` in Remain so that an absent
// attribute can be told apart from a null one.
type paramBlock struct {
	Name        string   `hcl:"name,label"`
	Description string   `hcl:"description,optional"`
	Remain      hcl.Body `hcl:",remain"`
}

type mountBlock struct {
	Name       string   `hcl:"name,label"`
	Source     string   `hcl:"source"`
	Target     string   `hcl:"target"`
	Components []string `hcl:"components,optional"`
}

type credentialsBlock struct {
	Name       string   `hcl:"name,label"`
	EnvFile    string   `hcl:"env_file,optional"`
	Keys       []string `hcl:"keys,optional"`
	Components []string `hcl:"components,optional"`
}

type overrideBlock struct {
	Component string            `hcl:"component,label"`
	Env       map[string]string `hcl:"env"`
}

type buildBlock struct {
	Name      string   `hcl:"name,label"`
	Component string   `hcl:"component"`
	Output    string   `hcl:"output,optional"`
	After     []string `hcl:"after,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

// stepBlock and deployBlock leave every attribute that may read `param` in
// Remain; those are evaluated when the pipeline compiles.
type stepBlock struct {
	Name       string   `hcl:"name,label"`
	Component  string   `hcl:"component"`
	Handler    string   `hcl:"handler,optional"`
	PullPolicy string   `hcl:"pull_policy,optional"`
	Outputs    []string `hcl:"outputs,optional"`
	After      []string `hcl:"after,optional"`
	Remain     hcl.Body `hcl:",remain"`
}

type deployBlock struct {
	Name      string   `hcl:"name,label"`
	Component string   `hcl:"component"`
	After     []string `hcl:"after,optional"`
	Remain    hcl.Body `hcl:",remain"`
}
