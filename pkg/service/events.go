package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/store"
)

// Events creates and evolves app events.
type Events struct{ base }

// ParameterUpdate changes the metadata of an existing parameter.
type ParameterUpdate struct {
	Name        string `json:"name"`
	Alias       string `json:"alias,omitempty"`
	Description string `json:"description,omitempty"`
	IsGDPR      bool   `json:"is_gdpr,omitempty"`
}

// CreateOrUpdateEvent is the input of CreateOrUpdate.
type CreateOrUpdateEvent struct {
	Name               string            `json:"name"`
	Alias              string            `json:"alias,omitempty"`
	Description        string            `json:"description,omitempty"`
	ExistingParameters []ParameterUpdate `json:"existing_parameters,omitempty"`
	NewParameters      []NewParameter    `json:"new_parameters,omitempty"`
}

// ParameterView is a parameter as served to clients.
type ParameterView struct {
	Name        string `json:"name"`
	Alias       string `json:"alias"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Version     int    `json:"version"`
	IsGDPR      bool   `json:"is_gdpr"`
}

// EventView is an event with its merged schema.
type EventView struct {
	Name         string          `json:"name"`
	Alias        string          `json:"alias"`
	Description  string          `json:"description"`
	Vendor       string          `json:"vendor"`
	DatasourceID string          `json:"datasource_id"`
	IsCommon     bool            `json:"is_common"`
	Status       string          `json:"status"`
	Versions     []int           `json:"versions"`
	Parameters   []ParameterView `json:"parameters"`
}

// ParameterGroup lists system parameters present on every event.
type ParameterGroup struct {
	Name       string          `json:"name"`
	Parameters []ParameterView `json:"parameters"`
}

// EventList is everything a client needs to browse an app's events.
type EventList struct {
	Events           []EventView      `json:"events"`
	ParameterTypes   []string         `json:"parameter_types"`
	SystemParameters []ParameterGroup `json:"system_parameters"`
}

func eventView(e *domain.Event) EventView {
	schema := e.EffectiveSchema()
	v := EventView{
		Name:         schema.Name,
		Alias:        schema.DisplayAlias(),
		Description:  schema.Description,
		Vendor:       schema.Vendor,
		DatasourceID: e.DatasourceID(),
		IsCommon:     e.IsCommon(),
		Status:       string(e.Status),
		Versions:     e.Versions(),
		Parameters:   make([]ParameterView, 0, len(schema.Parameters)),
	}
	for _, p := range schema.Parameters {
		v.Parameters = append(v.Parameters, parameterView(p))
	}
	return v
}

func parameterView(p *domain.SchemaParameter) ParameterView {
	return ParameterView{
		Name:        p.Name,
		Alias:       p.DisplayAlias(),
		Description: p.Description,
		Type:        string(p.Type),
		Version:     p.IntroducedAtVersion,
		IsGDPR:      p.IsGDPR,
	}
}

func lockKey(appID domain.AppID, name string) string {
	return fmt.Sprintf("event:%s:%s", appID, name)
}

// CreateOrUpdate creates a game-specific event or updates an existing
// one. New parameters form one version batch. Adding parameters or
// updating existing ones invalidates a converged event.
func (ev *Events) CreateOrUpdate(ctx context.Context, appID string, in CreateOrUpdateEvent) (*EventView, error) {
	now := ev.now()
	params, err := buildParameters(in.NewParameters, now)
	if err != nil {
		return nil, err
	}
	var out EventView
	err = ev.tx(ctx, func(s store.Session) error {
		app, err := s.App(ctx, domain.AppID(appID))
		if err != nil {
			return err
		}
		// The lock is best effort.
		if _, err := s.TryXactLock(ctx, lockKey(app.ID, in.Name)); err != nil {
			return err
		}
		if err := rejectAtomicNames(ctx, s, params); err != nil {
			return err
		}

		e, err := s.Event(ctx, app.ID, in.Name)
		switch {
		case errmodel.IsNotFound(err):
			if e, err = domain.NewGameSpecificEvent(app.ID, in.Name, in.Alias, in.Description, now); err != nil {
				return err
			}
			if err := applyUpdates(e, in.ExistingParameters, now); err != nil {
				return err
			}
			if err := e.AddParameters(params, now); err != nil {
				return err
			}
			if err := s.CreateEvent(ctx, e); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if in.Alias != "" {
				e.Schema.Alias = in.Alias
			}
			if in.Description != "" {
				e.Schema.Description = in.Description
			}
			if err := applyUpdates(e, in.ExistingParameters, now); err != nil {
				return err
			}
			// Descriptions are part of the table schema.
			if len(in.ExistingParameters) > 0 {
				e.Invalidate(now)
			}
			if err := e.AddParameters(params, now); err != nil {
				return err
			}
			if err := s.SaveEvent(ctx, e); err != nil {
				return err
			}
		}
		out = eventView(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func rejectAtomicNames(ctx context.Context, s store.Session, params []*domain.SchemaParameter) error {
	if len(params) == 0 {
		return nil
	}
	atomics, err := s.AtomicParameters(ctx)
	if err != nil {
		return err
	}
	reserved := make(map[string]bool, len(atomics))
	for _, a := range atomics {
		reserved[a.Name] = true
	}
	for _, p := range params {
		if reserved[p.Name] {
			return errmodel.Validation("reserved_name",
				fmt.Sprintf("parameter %s clashes with an atomic parameter", p.Name),
				map[string]any{"parameter": p.Name})
		}
	}
	return nil
}

// applyUpdates changes alias, description and GDPR flag of the event's
// own parameters. Parameters inherited from a common event are owned by
// it; updates naming them are accepted and not applied.
func applyUpdates(e *domain.Event, updates []ParameterUpdate, now time.Time) error {
	for _, u := range updates {
		p, err := e.Schema.Parameter(u.Name)
		if err != nil && e.IsCommon() {
			if _, lookupErr := e.EffectiveSchema().Parameter(u.Name); lookupErr == nil {
				continue
			}
		}
		if err != nil {
			return err
		}
		p.Alias = u.Alias
		p.Description = u.Description
		p.SetGDPR(u.IsGDPR, now)
	}
	return nil
}

// GetByName returns the merged view of one event.
func (ev *Events) GetByName(ctx context.Context, appID, name string) (*EventView, error) {
	return load(ctx, ev.base, func(s store.Session) (*EventView, error) {
		e, err := s.Event(ctx, domain.AppID(appID), name)
		if err != nil {
			return nil, err
		}
		v := eventView(e)
		return &v, nil
	})
}

// List returns the app's events together with the parameter types and
// the system parameters every event carries.
func (ev *Events) List(ctx context.Context, appID string) (*EventList, error) {
	return load(ctx, ev.base, func(s store.Session) (*EventList, error) {
		app, err := s.App(ctx, domain.AppID(appID))
		if err != nil {
			return nil, err
		}
		events, err := s.Events(ctx, store.EventFilter{AppID: app.ID})
		if err != nil {
			return nil, err
		}
		atomics, err := s.AtomicParameters(ctx)
		if err != nil {
			return nil, err
		}
		embedded := true
		contexts, err := s.EventContexts(ctx, store.ContextFilter{Embedded: &embedded})
		if err != nil {
			return nil, err
		}

		out := &EventList{Events: make([]EventView, 0, len(events))}
		for _, e := range events {
			out.Events = append(out.Events, eventView(e))
		}
		for _, t := range domain.ParameterTypes {
			out.ParameterTypes = append(out.ParameterTypes, string(t))
		}
		group := ParameterGroup{Name: "Atomic"}
		for _, a := range atomics {
			group.Parameters = append(group.Parameters, ParameterView{
				Name:        a.Name,
				Alias:       a.DisplayAlias(),
				Description: a.Description,
				Type:        string(a.Type),
				IsGDPR:      a.IsGDPR,
			})
		}
		out.SystemParameters = append(out.SystemParameters, group)
		for _, c := range contexts {
			group := ParameterGroup{Name: c.DisplayAlias()}
			for _, p := range c.Schema.Parameters {
				group.Parameters = append(group.Parameters, parameterView(p))
			}
			out.SystemParameters = append(out.SystemParameters, group)
		}
		return out, nil
	})
}
