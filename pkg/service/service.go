// Package service is the mutation path. Every call validates its input,
// writes through one store session and commits, or writes nothing.
// Warehouse, registry and IAM artifacts follow asynchronously through the
// maintainers.
package service

import (
	"context"
	"time"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// Services bundles every mutation service over one store.
type Services struct {
	Organizations *Organizations
	Apps          *Apps
	Events        *Events
	Catalog       *Catalog
	RawSchemas    *RawSchemas
}

// New wires the services. A nil now uses the wall clock.
func New(st store.Store, now func() time.Time) *Services {
	b := base{st: st, clock: now}
	return &Services{
		Organizations: &Organizations{b},
		Apps:          &Apps{b},
		Events:        &Events{b},
		Catalog:       &Catalog{b},
		RawSchemas:    &RawSchemas{b},
	}
}

type base struct {
	st    store.Store
	clock func() time.Time
}

func (b base) now() time.Time {
	if b.clock != nil {
		return b.clock().UTC()
	}
	return time.Now().UTC()
}

func (b base) tx(ctx context.Context, fn func(store.Session) error) error {
	return store.InSession(ctx, b.st, fn)
}

// load runs a read-only fn in its own session.
func load[T any](ctx context.Context, b base, fn func(store.Session) (T, error)) (T, error) {
	var out T
	err := b.tx(ctx, func(s store.Session) error {
		var err error
		out, err = fn(s)
		return err
	})
	return out, err
}

// NewParameter describes one parameter to append to a schema.
type NewParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Version     int    `json:"version"`
	Alias       string `json:"alias,omitempty"`
	Description string `json:"description,omitempty"`
	IsGDPR      bool   `json:"is_gdpr,omitempty"`
}

func buildParameters(in []NewParameter, now time.Time) ([]*domain.SchemaParameter, error) {
	out := make([]*domain.SchemaParameter, 0, len(in))
	for _, np := range in {
		typ, err := domain.ParseParameterType(np.Type)
		if err != nil {
			return nil, err
		}
		p, err := domain.NewSchemaParameter(np.Name, typ, np.Version)
		if err != nil {
			return nil, err
		}
		p.Alias = np.Alias
		p.Description = np.Description
		p.SetGDPR(np.IsGDPR, now)
		out = append(out, p)
	}
	return out, nil
}
