package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/wilhg/metadata/pkg/errmodel"
)

// RawSchema is an externally authored registry document mirrored verbatim.
type RawSchema struct {
	Path      string
	Content   json.RawMessage
	CreatedAt time.Time
	Lifecycle
}

func NewRawSchema(path string, content json.RawMessage, now time.Time) (*RawSchema, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, errmodel.Validation("invalid_path", "raw schema path is required", nil)
	}
	if !json.Valid(content) {
		return nil, errmodel.Validation("invalid_document", "raw schema content is not valid JSON", map[string]any{"path": path})
	}
	return &RawSchema{Path: path, Content: content, CreatedAt: now.UTC(), Lifecycle: NewLifecycle(now)}, nil
}

// Replace swaps the content when it differs and invalidates a converged schema.
func (r *RawSchema) Replace(content json.RawMessage, now time.Time) (bool, error) {
	if !json.Valid(content) {
		return false, errmodel.Validation("invalid_document", "raw schema content is not valid JSON", map[string]any{"path": r.Path})
	}
	if bytes.Equal(compact(r.Content), compact(content)) {
		return false, nil
	}
	r.Content = content
	r.Invalidate(now)
	return true, nil
}

func compact(b []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return b
	}
	return buf.Bytes()
}
