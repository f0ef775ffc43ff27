package service

import (
	"context"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// Catalog manages the schemas shared by every app: common events, event
// contexts and atomic parameters.
type Catalog struct{ base }

// NewSchema is the input of the Create* calls.
type NewSchema struct {
	Name        string         `json:"name"`
	Alias       string         `json:"alias,omitempty"`
	Description string         `json:"description,omitempty"`
	Parameters  []NewParameter `json:"parameters,omitempty"`
}

func (c *Catalog) schema(vendor string, in NewSchema) (*domain.Schema, error) {
	params, err := buildParameters(in.Parameters, c.now())
	if err != nil {
		return nil, err
	}
	sch, err := domain.NewSchema(vendor, in.Name)
	if err != nil {
		return nil, err
	}
	sch.Alias = in.Alias
	sch.Description = in.Description
	if err := sch.AddParameters(params); err != nil {
		return nil, err
	}
	return sch, nil
}

func (c *Catalog) CreateCommonEvent(ctx context.Context, in NewSchema) (*domain.CommonEvent, error) {
	sch, err := c.schema(domain.CommonEventVendor, in)
	if err != nil {
		return nil, err
	}
	ce, err := domain.NewCommonEvent(sch)
	if err != nil {
		return nil, err
	}
	if err := c.tx(ctx, func(s store.Session) error { return s.CreateCommonEvent(ctx, ce) }); err != nil {
		return nil, err
	}
	return ce, nil
}

// AddCommonEventParameters appends a version batch. Apps already linked
// keep the version they were linked at.
func (c *Catalog) AddCommonEventParameters(ctx context.Context, name string, in []NewParameter) (*domain.CommonEvent, error) {
	params, err := buildParameters(in, c.now())
	if err != nil {
		return nil, err
	}
	var ce *domain.CommonEvent
	err = c.tx(ctx, func(s store.Session) error {
		var err error
		if ce, err = s.CommonEvent(ctx, name); err != nil {
			return err
		}
		if err := ce.AddParameters(params); err != nil {
			return err
		}
		return s.SaveCommonEvent(ctx, ce)
	})
	if err != nil {
		return nil, err
	}
	return ce, nil
}

// CreateEventContext registers a context. Embedded contexts are merged
// into every event row; the rest get tables of their own. Dependents are
// invalidated when the context first converges.
func (c *Catalog) CreateEventContext(ctx context.Context, in NewSchema, embedded bool) (*domain.EventContext, error) {
	vendor := domain.ContextVendor
	if embedded {
		vendor = domain.EmbeddedContextVendor
	}
	sch, err := c.schema(vendor, in)
	if err != nil {
		return nil, err
	}
	ec, err := domain.NewEventContext(sch, embedded, c.now())
	if err != nil {
		return nil, err
	}
	if err := c.tx(ctx, func(s store.Session) error { return s.CreateEventContext(ctx, ec) }); err != nil {
		return nil, err
	}
	return ec, nil
}

func (c *Catalog) AddEventContextParameters(ctx context.Context, name string, in []NewParameter) (*domain.EventContext, error) {
	now := c.now()
	params, err := buildParameters(in, now)
	if err != nil {
		return nil, err
	}
	var ec *domain.EventContext
	err = c.tx(ctx, func(s store.Session) error {
		var err error
		if ec, err = s.EventContext(ctx, name); err != nil {
			return err
		}
		if err := ec.AddParameters(params, now); err != nil {
			return err
		}
		return s.SaveEventContext(ctx, ec)
	})
	if err != nil {
		return nil, err
	}
	return ec, nil
}

func (c *Catalog) EventContexts(ctx context.Context) ([]*domain.EventContext, error) {
	return load(ctx, c.base, func(s store.Session) ([]*domain.EventContext, error) {
		return s.EventContexts(ctx, store.ContextFilter{})
	})
}

func (c *Catalog) CommonEvents(ctx context.Context) ([]*domain.CommonEvent, error) {
	return load(ctx, c.base, func(s store.Session) ([]*domain.CommonEvent, error) {
		return s.CommonEvents(ctx)
	})
}

// NewAtomic is the input of CreateAtomicParameter.
type NewAtomic struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	IsGDPR      bool   `json:"is_gdpr,omitempty"`
}

// CreateAtomicParameter adds a column to every event row. Converged
// events and apps are invalidated so their tables and views pick it up.
func (c *Catalog) CreateAtomicParameter(ctx context.Context, in NewAtomic) (*domain.AtomicParameter, error) {
	typ, err := domain.ParseParameterType(in.Type)
	if err != nil {
		return nil, err
	}
	a, err := domain.NewAtomicParameter(in.Name, typ, in.Description, in.IsGDPR)
	if err != nil {
		return nil, err
	}
	err = c.tx(ctx, func(s store.Session) error {
		if err := s.CreateAtomicParameter(ctx, a); err != nil {
			return err
		}
		return store.InvalidateRowShapes(ctx, s, c.now())
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (c *Catalog) AtomicParameters(ctx context.Context) ([]*domain.AtomicParameter, error) {
	return load(ctx, c.base, func(s store.Session) ([]*domain.AtomicParameter, error) {
		return s.AtomicParameters(ctx)
	})
}
