package app

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/vk/pipecompile/internal/compiler"
	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/export"
	"github.com/vk/pipecompile/internal/objectstore"
	"github.com/vk/pipecompile/internal/pipeline"
)

// Run compiles the configured pipeline and writes the resulting document.
// It returns the compiled graph for callers that need it.
func (a *App) Run(ctx context.Context) (*pipeline.Graph, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.EnvFile != "" {
		if err := godotenv.Load(a.config.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
		a.logger.Debug("Environment file loaded.", "path", a.config.EnvFile)
	}

	reg, err := a.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.loadPipeline(ctx)
	if err != nil {
		return nil, err
	}
	supplied, err := compiler.ParseAssignments(a.config.Params)
	if err != nil {
		return nil, err
	}

	g, err := compiler.Compile(ctx, reg, p, supplied)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pipeline: %w", err)
	}

	format, err := export.ParseFormat(a.config.Format)
	if err != nil {
		return nil, err
	}
	doc, err := export.FromGraph(g)
	if err != nil {
		return nil, fmt.Errorf("failed to export graph: %w", err)
	}
	var buf bytes.Buffer
	if err := export.Encode(&buf, doc, format); err != nil {
		return nil, err
	}

	if err := a.write(buf.Bytes()); err != nil {
		return nil, err
	}
	if a.config.Publish {
		key := objectstore.Key(g.Name, g.ID, format.Extension())
		if err := a.publish(ctx, key, buf.Bytes(), format.ContentType()); err != nil {
			return nil, err
		}
	}

	a.logger.Info("Pipeline compiled.", "pipeline", g.Name, "graph_id", g.ID, "steps", g.Len(), "edges", len(g.Edges()))
	a.logger.Debug("App.Run method finished.")
	return g, nil
}

func (a *App) write(data []byte) error {
	if a.config.OutPath == "" {
		_, err := a.outW.Write(data)
		return err
	}
	if err := os.WriteFile(a.config.OutPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	a.logger.Debug("Document written.", "path", a.config.OutPath, "bytes", len(data))
	return nil
}

func (a *App) publish(ctx context.Context, key string, data []byte, contentType string) error {
	bucket := a.config.PublishBucket
	store := a.store
	if store == nil {
		cfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			return fmt.Errorf("object store configuration: %w", err)
		}
		minioStore, err := objectstore.NewMinioStore(cfg)
		if err != nil {
			return err
		}
		if bucket == "" {
			bucket = cfg.Bucket
		}
		if err := minioStore.EnsureBucket(ctx, bucket); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", bucket, err)
		}
		store = minioStore
	}
	if err := objectstore.PutBytes(ctx, store, bucket, key, data, contentType); err != nil {
		return fmt.Errorf("failed to publish document: %w", err)
	}
	a.logger.Info("Document published.", "bucket", bucket, "key", key)
	return nil
}
