package api

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wilhg/metadata/pkg/compiler"
	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/service"
)

type organizationRequest struct {
	Name             string `json:"name"`
	WarehouseProject string `json:"warehouse_project"`
}

type principalsRequest struct {
	Principals []string `json:"principals"`
}

type organizationResponse struct {
	Name             string    `json:"name"`
	WarehouseProject string    `json:"warehouse_project"`
	Principals       []string  `json:"principals"`
	Status           string    `json:"status"`
	StatusUpdatedAt  time.Time `json:"status_updated_at"`
}

func organizationOut(o *domain.Organization) organizationResponse {
	principals := o.Principals
	if principals == nil {
		principals = []string{}
	}
	return organizationResponse{
		Name:             o.Name,
		WarehouseProject: o.WarehouseProject,
		Principals:       principals,
		Status:           string(o.Status),
		StatusUpdatedAt:  o.StatusUpdatedAt,
	}
}

type datasourceResponse struct {
	ID          string      `json:"id"`
	HasDataFrom civil.Date  `json:"has_data_from"`
	HasDataUpTo *civil.Date `json:"has_data_up_to"`
}

func datasourceOut(d *domain.Datasource) datasourceResponse {
	return datasourceResponse{ID: d.ID, HasDataFrom: d.HasDataFrom, HasDataUpTo: d.HasDataUpTo}
}

type appResponse struct {
	AppID        string               `json:"app_id"`
	Organization string               `json:"organization"`
	Timezone     string               `json:"timezone"`
	APIKey       string               `json:"api_key"`
	Status       string               `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
	Datasources  []datasourceResponse `json:"datasources"`
	Integrations domain.Integrations  `json:"integrations"`
}

func appOut(a *domain.App) appResponse {
	out := appResponse{
		AppID:        string(a.ID),
		Timezone:     string(a.Timezone),
		APIKey:       a.APIKey,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		Datasources:  make([]datasourceResponse, 0, len(a.Datasources)),
		Integrations: a.Integrations,
	}
	if a.Organization != nil {
		out.Organization = a.Organization.Name
	}
	for _, d := range a.Datasources {
		out.Datasources = append(out.Datasources, datasourceOut(d))
	}
	return out
}

type freshnessRequest struct {
	HasDataUpTo civil.Date `json:"has_data_up_to"`
}

type schemaResponse struct {
	Name        string                  `json:"name"`
	Alias       string                  `json:"alias"`
	Description string                  `json:"description"`
	Vendor      string                  `json:"vendor"`
	Versions    []int                   `json:"versions"`
	Parameters  []service.ParameterView `json:"parameters"`
}

func schemaOut(s *domain.Schema) schemaResponse {
	out := schemaResponse{
		Name:        s.Name,
		Alias:       s.DisplayAlias(),
		Description: s.Description,
		Vendor:      s.Vendor,
		Versions:    s.Versions(),
		Parameters:  make([]service.ParameterView, 0, len(s.Parameters)),
	}
	for _, p := range s.Parameters {
		out.Parameters = append(out.Parameters, service.ParameterView{
			Name:        p.Name,
			Alias:       p.DisplayAlias(),
			Description: p.Description,
			Type:        string(p.Type),
			Version:     p.IntroducedAtVersion,
			IsGDPR:      p.IsGDPR,
		})
	}
	return out
}

type contextRequest struct {
	service.NewSchema
	Embedded bool `json:"embedded"`
}

type contextResponse struct {
	schemaResponse
	Embedded bool   `json:"embedded"`
	Status   string `json:"status"`
}

func contextOut(c *domain.EventContext) contextResponse {
	out := contextResponse{schemaResponse: schemaOut(c.Schema), Embedded: c.EmbeddedInEvent, Status: string(c.Status)}
	if c.Schema.Alias == "" {
		out.Alias = c.DisplayAlias()
	}
	return out
}

type parametersRequest struct {
	Parameters []service.NewParameter `json:"parameters"`
}

type atomicResponse struct {
	Name        string `json:"name"`
	Alias       string `json:"alias"`
	Type        string `json:"type"`
	Description string `json:"description"`
	IsGDPR      bool   `json:"is_gdpr"`
}

func atomicOut(a *domain.AtomicParameter) atomicResponse {
	return atomicResponse{Name: a.Name, Alias: a.DisplayAlias(), Type: string(a.Type), Description: a.Description, IsGDPR: a.IsGDPR}
}

type rawSchemaResponse struct {
	Path     string          `json:"path"`
	Status   string          `json:"status"`
	Document json.RawMessage `json:"document"`
}

func rawSchemaOut(r *domain.RawSchema) rawSchemaResponse {
	return rawSchemaResponse{Path: r.Path, Status: string(r.Status), Document: r.Content}
}

type appCatalogResponse struct {
	AppID               string              `json:"app_id"`
	Timezone            string              `json:"timezone"`
	Events              []string            `json:"events"`
	GDPREventParameters map[string][]string `json:"gdpr_event_parameters"`
}

type catalogResponse struct {
	GDPRAtomicParameters  []string             `json:"gdpr_atomic_parameters"`
	GDPRContextParameters map[string][]string  `json:"gdpr_context_parameters"`
	GDPREventParameters   map[string][]string  `json:"gdpr_common_event_parameters"`
	EmbeddedContexts      []string             `json:"embedded_contexts"`
	StandaloneContexts    []string             `json:"standalone_contexts"`
	Apps                  []appCatalogResponse `json:"apps"`
}

func catalogOut(c *compiler.Catalog) catalogResponse {
	out := catalogResponse{
		GDPRAtomicParameters:  c.GDPRAtomicParameters,
		GDPRContextParameters: c.GDPRContextParameters,
		GDPREventParameters:   c.GDPREventParameters,
		Apps:                  make([]appCatalogResponse, 0, len(c.Apps)),
	}
	for _, ec := range c.EmbeddedContexts {
		out.EmbeddedContexts = append(out.EmbeddedContexts, ec.Schema.Name)
	}
	for _, ec := range c.StandaloneContexts {
		out.StandaloneContexts = append(out.StandaloneContexts, ec.Schema.Name)
	}
	for _, ac := range c.Apps {
		a := appCatalogResponse{
			AppID:               string(ac.App.ID),
			Timezone:            string(ac.App.Timezone),
			Events:              make([]string, 0, len(ac.Events)),
			GDPREventParameters: ac.GDPREventParameters,
		}
		for _, e := range ac.Events {
			a.Events = append(a.Events, e.Schema.Name)
		}
		out.Apps = append(out.Apps, a)
	}
	return out
}
