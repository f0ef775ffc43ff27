package service

import (
	"context"
	"encoding/json"

	"github.com/wilhg/metadata/pkg/compiler"
	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/store"
)

// RawSchemas stores hand-written registry documents by path.
type RawSchemas struct{ base }

// Put stores document under path. Identical content is a no-op; changed
// content on a published path schedules a re-upload.
func (r *RawSchemas) Put(ctx context.Context, path string, document json.RawMessage) (*domain.RawSchema, error) {
	if err := compiler.CheckDocument(document); err != nil {
		return nil, err
	}
	now := r.now()
	fresh, err := domain.NewRawSchema(path, document, now)
	if err != nil {
		return nil, err
	}
	var out *domain.RawSchema
	err = r.tx(ctx, func(s store.Session) error {
		existing, err := s.RawSchema(ctx, fresh.Path)
		if errmodel.IsNotFound(err) {
			out = fresh
			return s.CreateRawSchema(ctx, fresh)
		}
		if err != nil {
			return err
		}
		out = existing
		changed, err := existing.Replace(document, now)
		if err != nil || !changed {
			return err
		}
		return s.SaveRawSchema(ctx, existing)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RawSchemas) Get(ctx context.Context, path string) (*domain.RawSchema, error) {
	return load(ctx, r.base, func(s store.Session) (*domain.RawSchema, error) {
		return s.RawSchema(ctx, path)
	})
}
