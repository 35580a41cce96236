package app

import (
	"io"
	"log/slog"

	"github.com/vk/pipecompile/internal/objectstore"
	"github.com/vk/pipecompile/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	modules []registry.Module
	store   objectstore.Store
}

// NewApp is the constructor for the main application. Compiled documents go
// to outW unless an output file is configured; logs go to logW.
func NewApp(outW, logW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	if len(modules) == 0 {
		modules = coreModules
	}
	logger.Debug("Logger configured successfully.")
	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		modules: modules,
	}
}

// SetStore replaces the object store used for publishing. Without one, a
// MinIO store is created from the environment when publishing is requested.
func (a *App) SetStore(s objectstore.Store) {
	a.store = s
}
