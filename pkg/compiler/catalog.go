package compiler

import (
	"sort"

	"github.com/wilhg/metadata/pkg/domain"
)

// AppCatalog lists the converged events of one app and their GDPR parameters.
type AppCatalog struct {
	App                 *domain.App
	Events              []*domain.Event
	GDPREventParameters map[string][]string
}

// Catalog is the configuration consumed by downstream pipelines: every
// schema that is live in the warehouse and which of its fields hold
// personal data.
type Catalog struct {
	AtomicParameters      []*domain.AtomicParameter
	GDPRAtomicParameters  []string
	GDPRContextParameters map[string][]string
	GDPREventParameters   map[string][]string
	EmbeddedContexts      []*domain.EventContext
	StandaloneContexts    []*domain.EventContext
	Apps                  []AppCatalog
}

// BuildCatalog assembles the catalog over converged apps. Events of apps
// outside apps, and events never reconciled, are skipped.
func BuildCatalog(apps []*domain.App, events []*domain.Event, atomics []*domain.AtomicParameter,
	contexts []*domain.EventContext, commons []*domain.CommonEvent) *Catalog {
	c := &Catalog{
		AtomicParameters:      atomics,
		GDPRContextParameters: map[string][]string{},
		GDPREventParameters:   map[string][]string{},
	}
	for _, a := range atomics {
		if a.IsGDPR {
			c.GDPRAtomicParameters = append(c.GDPRAtomicParameters, a.Name)
		}
	}
	for _, ctx := range contexts {
		if !ctx.EmbeddedInEvent {
			c.StandaloneContexts = append(c.StandaloneContexts, ctx)
			continue
		}
		c.EmbeddedContexts = append(c.EmbeddedContexts, ctx)
		if names := gdprNames(ctx.Schema.Parameters); len(names) > 0 {
			c.GDPRContextParameters[ctx.Schema.Name] = names
		}
	}
	for _, ce := range commons {
		if names := gdprNames(ce.Schema.Parameters); len(names) > 0 {
			c.GDPREventParameters[ce.Schema.Name] = names
		}
	}

	byApp := map[domain.AppID]*AppCatalog{}
	sorted := append([]*domain.App(nil), apps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	c.Apps = make([]AppCatalog, len(sorted))
	for i, app := range sorted {
		c.Apps[i] = AppCatalog{App: app, GDPREventParameters: map[string][]string{}}
		byApp[app.ID] = &c.Apps[i]
	}
	for _, ev := range events {
		ac, ok := byApp[ev.AppID]
		if !ok || ev.Status == domain.StatusNotReady {
			continue
		}
		ac.Events = append(ac.Events, ev)
		schema := ev.EffectiveSchema()
		if names := gdprNames(schema.Parameters); len(names) > 0 {
			ac.GDPREventParameters[schema.Name] = names
		}
	}
	return c
}

func gdprNames(params []*domain.SchemaParameter) []string {
	var out []string
	for _, p := range params {
		if p.IsGDPR {
			out = append(out, p.Name)
		}
	}
	return out
}
