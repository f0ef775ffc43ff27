// Package gcs publishes registry documents to a Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/wilhg/metadata/pkg/adapters/registry"
)

// DefaultPrefix is where registry documents live inside the bucket.
const DefaultPrefix = "schemas/"

type Registry struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ registry.Registry = (*Registry)(nil)

// New opens a storage client for bucket. An empty prefix uses DefaultPrefix.
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Registry, error) {
	if bucket == "" {
		return nil, fmt.Errorf("schema bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{client: client, bucket: bucket, prefix: prefix}, nil
}

// ObjectName is the object key a document path is stored under.
func (r *Registry) ObjectName(p string) string { return path.Join(r.prefix, p) }

func (r *Registry) Upload(ctx context.Context, p string, document json.RawMessage) error {
	name := r.ObjectName(p)
	w := r.client.Bucket(r.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := io.Copy(w, bytes.NewReader(document)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload object %s: %w", name, err)
	}
	return nil
}

func (r *Registry) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
