package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Store writes objects into buckets.
type Store interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
}

// Key returns the object key of a compiled graph: <pipeline>/<id><ext>.
func Key(pipelineName, graphID, ext string) string {
	return path.Join(pipelineName, graphID+ext)
}

// PutBytes writes data as a single object.
func PutBytes(ctx context.Context, s Store, bucket, key string, data []byte, contentType string) error {
	if strings.TrimSpace(bucket) == "" {
		return fmt.Errorf("bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	if err := s.Put(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}
