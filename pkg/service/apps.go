package service

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/wilhg/metadata/pkg/compiler"
	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/store"
)

// Apps registers apps and tracks their datasources and integrations.
type Apps struct{ base }

// RegisterApp is the input of Register. Timezone defaults to UTC and
// HasDataFrom to the registration date.
type RegisterApp struct {
	AppID        string      `json:"app_id"`
	Organization string      `json:"organization"`
	Timezone     string      `json:"timezone,omitempty"`
	HasDataFrom  *civil.Date `json:"has_data_from,omitempty"`
}

func (a *Apps) Register(ctx context.Context, in RegisterApp) (*domain.App, error) {
	id, err := domain.ParseAppID(in.AppID)
	if err != nil {
		return nil, err
	}
	if in.Timezone == "" {
		in.Timezone = "UTC"
	}
	tz, err := domain.ParseTimezone(in.Timezone)
	if err != nil {
		return nil, err
	}
	var app *domain.App
	err = a.tx(ctx, func(s store.Session) error {
		org, err := s.OrganizationByName(ctx, in.Organization)
		if err != nil {
			return err
		}
		if app, err = domain.NewApp(id, org, tz, in.HasDataFrom, a.now()); err != nil {
			return err
		}
		return s.CreateApp(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (a *Apps) Get(ctx context.Context, id string) (*domain.App, error) {
	return load(ctx, a.base, func(s store.Session) (*domain.App, error) {
		return s.App(ctx, domain.AppID(id))
	})
}

// ListReady returns apps reconciled at least once.
func (a *Apps) ListReady(ctx context.Context) ([]*domain.App, error) {
	return load(ctx, a.base, func(s store.Session) ([]*domain.App, error) {
		return s.Apps(ctx, store.Not(domain.StatusNotReady))
	})
}

// UpdateDatasourceFreshness records that datasource holds complete data up
// to upTo. Unknown datasources are created starting at upTo; known ones
// only ever move forward.
func (a *Apps) UpdateDatasourceFreshness(ctx context.Context, appID, datasourceID string, upTo civil.Date) (*domain.Datasource, error) {
	if !upTo.IsValid() {
		return nil, errmodel.Validation("invalid_date", fmt.Sprintf("invalid date %s", upTo), map[string]any{"datasource": datasourceID})
	}
	var ds *domain.Datasource
	err := a.tx(ctx, func(s store.Session) error {
		app, err := s.App(ctx, domain.AppID(appID))
		if err != nil {
			return err
		}
		if ds = app.Datasource(datasourceID); ds == nil {
			d := upTo
			ds = &domain.Datasource{ID: datasourceID, AppID: app.ID, HasDataFrom: upTo, HasDataUpTo: &d}
			if err := app.AddDatasource(ds); err != nil {
				return err
			}
		} else if !ds.UpdateDataFreshness(upTo) {
			return nil
		}
		return s.SaveApp(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// SetIntegration attaches the non-nil records of in to the app, keeping
// the ones in is silent about.
func (a *Apps) SetIntegration(ctx context.Context, appID string, in domain.Integrations) (*domain.App, error) {
	var app *domain.App
	err := a.tx(ctx, func(s store.Session) error {
		var err error
		if app, err = s.App(ctx, domain.AppID(appID)); err != nil {
			return err
		}
		if in.Appsflyer != nil {
			app.Integrations.Appsflyer = in.Appsflyer
		}
		if in.AppsflyerCostETL != nil {
			app.Integrations.AppsflyerCostETL = in.AppsflyerCostETL
		}
		if in.ITunes != nil {
			app.Integrations.ITunes = in.ITunes
		}
		if in.GooglePlay != nil {
			app.Integrations.GooglePlay = in.GooglePlay
		}
		return s.SaveApp(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// EventsByApp builds the catalog of converged apps and their events.
func (a *Apps) EventsByApp(ctx context.Context) (*compiler.Catalog, error) {
	return load(ctx, a.base, func(s store.Session) (*compiler.Catalog, error) {
		apps, err := s.Apps(ctx, store.Is(domain.StatusSuccess))
		if err != nil {
			return nil, err
		}
		events, err := s.Events(ctx, store.EventFilter{})
		if err != nil {
			return nil, err
		}
		atomics, err := s.AtomicParameters(ctx)
		if err != nil {
			return nil, err
		}
		contexts, err := s.EventContexts(ctx, store.ContextFilter{})
		if err != nil {
			return nil, err
		}
		commons, err := s.CommonEvents(ctx)
		if err != nil {
			return nil, err
		}
		return compiler.BuildCatalog(apps, events, atomics, contexts, commons), nil
	})
}
