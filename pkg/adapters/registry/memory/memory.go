// Package memory is an in-process Registry that records uploads.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/wilhg/metadata/pkg/adapters/registry"
)

type Registry struct {
	mu      sync.Mutex
	objects map[string]json.RawMessage
	uploads []string
	err     error
}

var _ registry.Registry = (*Registry)(nil)

func New() *Registry { return &Registry{objects: map[string]json.RawMessage{}} }

// FailWith makes every subsequent upload return err; nil clears it.
func (r *Registry) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Registry) Upload(_ context.Context, path string, document json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.objects[path] = append(json.RawMessage(nil), document...)
	r.uploads = append(r.uploads, path)
	return nil
}

// Uploads returns every uploaded path in call order.
func (r *Registry) Uploads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.uploads...)
}

// Object returns the stored document at path.
func (r *Registry) Object(path string) (json.RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.objects[path]
	return doc, ok
}
