package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/pipecompile/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// multiFlag collects every occurrence of a repeatable flag.
type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("pipecompile", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprintf(output, `
pipecompile - Compile declarative ML pipelines into validated step graphs.

Usage:
  pipecompile [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Built-in pipelines:
  %s

Options:
`, strings.Join(app.BuiltinNames(), ", "))
		flagSet.PrintDefaults()
	}

	var params, setEnv multiFlag
	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline file or directory.")
	pFlag := flagSet.String("p", "", "Path to the pipeline file or directory (shorthand).")
	builtinFlag := flagSet.String("builtin", "", "Name of a built-in pipeline to compile instead of a file.")
	modulesPathFlag := flagSet.String("modules-path", "", "Path to additional component manifests.")
	flagSet.Var(&params, "param", "Pipeline parameter as key=value. Repeatable.")
	flagSet.Var(&setEnv, "set-env", "Environment variable set on every component, as key=value. Repeatable.")
	envFileFlag := flagSet.String("env-file", "", "Dotenv file loaded into the environment before compiling.")
	formatFlag := flagSet.String("format", "json", "Output format. Options: 'json' or 'yaml'.")
	outFlag := flagSet.String("out", "", "Write the compiled document to this file instead of stdout.")
	publishFlag := flagSet.Bool("publish", false, "Publish the compiled document to object storage (PIPECOMPILE_MINIO_* variables).")
	bucketFlag := flagSet.String("publish-bucket", "", "Bucket to publish to. Defaults to PIPECOMPILE_MINIO_BUCKET.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Pipeline path determined.", "path", path, "builtin", *builtinFlag)

	if path == "" && *builtinFlag == "" {
		slog.Debug("No pipeline provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *bucketFlag != "" && !*publishFlag {
		return nil, false, &ExitError{Code: 2, Message: "-publish-bucket requires -publish"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PipelinePath:  path,
		Builtin:       *builtinFlag,
		ModulesPath:   *modulesPathFlag,
		Params:        params,
		SetEnv:        setEnv,
		EnvFile:       *envFileFlag,
		Format:        *formatFlag,
		OutPath:       *outFlag,
		Publish:       *publishFlag,
		PublishBucket: *bucketFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
