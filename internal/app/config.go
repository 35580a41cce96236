package app

import (
	"errors"
	"fmt"

	"github.com/vk/pipecompile/internal/export"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // hcl pipeline files, may also hold component manifests
	Builtin      string // name of a pipeline compiled into the binary
	ModulesPath  string // hcl component manifests

	Params  []string // key=value pipeline parameters
	SetEnv  []string // key=value env set on every component
	EnvFile string   // dotenv file loaded into the process environment

	Format        string
	OutPath       string
	Publish       bool
	PublishBucket string // defaults to the object store's configured bucket

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	switch {
	case cfg.PipelinePath == "" && cfg.Builtin == "":
		return nil, errors.New("a pipeline path or a built-in pipeline name is required")
	case cfg.PipelinePath != "" && cfg.Builtin != "":
		return nil, errors.New("a pipeline path and a built-in pipeline cannot be used together")
	}
	if cfg.Builtin != "" {
		if _, ok := builtinPipelines[cfg.Builtin]; !ok {
			return nil, fmt.Errorf("unknown built-in pipeline %q, available: %v", cfg.Builtin, BuiltinNames())
		}
	}
	if cfg.Format == "" {
		cfg.Format = string(export.JSON)
	}
	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	cfg.Format = string(format)

	return &cfg, nil
}
