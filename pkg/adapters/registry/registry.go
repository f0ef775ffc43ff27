// Package registry is the schema registry bucket the maintainers publish to.
package registry

import (
	"context"
	"encoding/json"
)

// Registry stores registry documents by path. Uploading the same path
// again overwrites the object.
type Registry interface {
	Upload(ctx context.Context, path string, document json.RawMessage) error
}
