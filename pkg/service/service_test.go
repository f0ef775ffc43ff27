package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/store"
	"github.com/wilhg/metadata/pkg/store/entstore"
)

func newServices(t *testing.T) (*Services, *entstore.Store) {
	t.Helper()
	st := entstore.OpenTest(t)
	svc := New(st, nil)
	_, err := svc.Organizations.Create(context.Background(), "algebra", "client-project")
	require.NoError(t, err)
	return svc, st
}

func register(t *testing.T, svc *Services, id string) *domain.App {
	t.Helper()
	app, err := svc.Apps.Register(context.Background(), RegisterApp{AppID: id, Organization: "algebra"})
	require.NoError(t, err)
	return app
}

// converge marks every entity SUCCESS the way a finished maintainer round would.
func converge(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.InSession(ctx, st, func(s store.Session) error {
		orgs, err := s.Organizations(ctx, store.Not(domain.StatusSuccess))
		if err != nil {
			return err
		}
		for _, o := range orgs {
			if err := o.MarkSucceeded(now); err != nil {
				return err
			}
			if err := s.SaveOrganization(ctx, o); err != nil {
				return err
			}
		}
		apps, err := s.Apps(ctx, store.Not(domain.StatusSuccess))
		if err != nil {
			return err
		}
		for _, a := range apps {
			if err := a.MarkSucceeded(now); err != nil {
				return err
			}
			if err := s.SaveApp(ctx, a); err != nil {
				return err
			}
		}
		events, err := s.Events(ctx, store.EventFilter{Status: store.Not(domain.StatusSuccess)})
		if err != nil {
			return err
		}
		for _, e := range events {
			if err := e.MarkSucceeded(now); err != nil {
				return err
			}
			if err := s.SaveEvent(ctx, e); err != nil {
				return err
			}
		}
		contexts, err := s.EventContexts(ctx, store.ContextFilter{Status: store.Not(domain.StatusSuccess)})
		if err != nil {
			return err
		}
		for _, c := range contexts {
			if err := c.MarkSucceeded(now); err != nil {
				return err
			}
			if err := s.SaveEventContext(ctx, c); err != nil {
				return err
			}
		}
		raws, err := s.RawSchemas(ctx, store.Not(domain.StatusSuccess))
		if err != nil {
			return err
		}
		for _, r := range raws {
			if err := r.MarkSucceeded(now); err != nil {
				return err
			}
			if err := s.SaveRawSchema(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestRegisterAppCreatesUserHistory(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	from := civil.Date{Year: 2023, Month: time.June, Day: 12}

	_, err := svc.Apps.Register(ctx, RegisterApp{AppID: "newapp", Organization: "algebra", HasDataFrom: &from})
	require.NoError(t, err)

	app, err := svc.Apps.Get(ctx, "newapp")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotReady, app.Status)
	assert.Equal(t, domain.Timezone("UTC"), app.Timezone)
	assert.NotEmpty(t, app.APIKey)
	ds := app.Datasource(domain.UserHistoryDatasource)
	require.NotNil(t, ds)
	assert.Equal(t, from, ds.HasDataFrom)
	assert.Nil(t, ds.HasDataUpTo)
}

func TestRegisterAppRejections(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	register(t, svc, "game")

	_, err := svc.Apps.Register(ctx, RegisterApp{AppID: "game", Organization: "algebra"})
	assert.True(t, errmodel.IsConflict(err), "duplicate: %v", err)

	_, err = svc.Apps.Register(ctx, RegisterApp{AppID: "other", Organization: "nobody"})
	assert.True(t, errmodel.IsNotFound(err), "unknown org: %v", err)

	_, err = svc.Apps.Register(ctx, RegisterApp{AppID: "Game", Organization: "algebra"})
	assert.True(t, errmodel.IsValidation(err))

	_, err = svc.Apps.Register(ctx, RegisterApp{AppID: "zoned", Organization: "algebra", Timezone: "Mars/Olympus"})
	assert.True(t, errmodel.IsValidation(err))
}

func TestDatasourceFreshnessOnlyMovesForward(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	register(t, svc, "game")
	d15 := civil.Date{Year: 2023, Month: time.June, Day: 15}
	d14 := civil.Date{Year: 2023, Month: time.June, Day: 14}

	ds, err := svc.Apps.UpdateDatasourceFreshness(ctx, "game", "events_login", d15)
	require.NoError(t, err)
	assert.Equal(t, d15, ds.HasDataFrom)

	_, err = svc.Apps.UpdateDatasourceFreshness(ctx, "game", "events_login", d14)
	require.NoError(t, err)
	app, err := svc.Apps.Get(ctx, "game")
	require.NoError(t, err)
	got := app.Datasource("events_login")
	require.NotNil(t, got)
	require.NotNil(t, got.HasDataUpTo)
	assert.Equal(t, d15, *got.HasDataUpTo)
}

func TestEventVersionsAccumulate(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	register(t, svc, "game")

	_, err := svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []NewParameter{{Name: "param", Type: "string", Version: 0}},
	})
	require.NoError(t, err)
	v, err := svc.Events.GetByName(ctx, "game", "event")
	require.NoError(t, err)
	require.Len(t, v.Parameters, 1)
	assert.Equal(t, "param", v.Parameters[0].Name)
	assert.Equal(t, "events_event", v.DatasourceID)
	assert.Equal(t, "Event", v.Alias)

	_, err = svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []NewParameter{{Name: "param1", Type: "integer", Version: 1}},
	})
	require.NoError(t, err)
	v, err = svc.Events.GetByName(ctx, "game", "event")
	require.NoError(t, err)
	require.Len(t, v.Parameters, 2)
	assert.Equal(t, []string{"param", "param1"}, []string{v.Parameters[0].Name, v.Parameters[1].Name})
	assert.Equal(t, []int{0, 1}, v.Versions)
}

func TestEventRejections(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	register(t, svc, "game")

	_, err := svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []NewParameter{{Name: "user_id", Type: "string"}},
	})
	assert.True(t, errmodel.IsValidation(err), "atomic clash: %v", err)

	_, err = svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{Name: "ctx_bad"})
	assert.True(t, errmodel.IsValidation(err), "context prefix: %v", err)

	_, err = svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []NewParameter{{Name: "param", Type: "string", Version: 1}},
	})
	assert.True(t, errmodel.IsValidation(err), "version gap: %v", err)

	_, err = svc.Events.CreateOrUpdate(ctx, "missing", CreateOrUpdateEvent{Name: "event"})
	assert.True(t, errmodel.IsNotFound(err))

	_, err = svc.Events.GetByName(ctx, "game", "event")
	assert.True(t, errmodel.IsNotFound(err), "nothing may be written on rejection")
}

func TestAddingParametersInvalidatesConvergedEvent(t *testing.T) {
	svc, st := newServices(t)
	ctx := context.Background()
	register(t, svc, "game")
	_, err := svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []NewParameter{{Name: "param", Type: "string"}},
	})
	require.NoError(t, err)
	converge(t, st)

	v, err := svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:               "event",
		Description:        "changed",
		ExistingParameters: []ParameterUpdate{{Name: "param", Alias: "Parameter", IsGDPR: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusSuccess), v.Status, "metadata changes do not touch the warehouse")
	assert.True(t, v.Parameters[0].IsGDPR)
	assert.Equal(t, "Parameter", v.Parameters[0].Alias)

	v, err = svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []NewParameter{{Name: "level", Type: "integer", Version: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusNeedsUpdate), v.Status)
	assert.Equal(t, "changed", v.Description)
}

func TestCommonEventInstancesTakeCustomParametersOnly(t *testing.T) {
	svc, st := newServices(t)
	ctx := context.Background()
	app := register(t, svc, "game")
	common, err := svc.Catalog.CreateCommonEvent(ctx, NewSchema{
		Name:       "login",
		Parameters: []NewParameter{{Name: "method", Type: "string"}},
	})
	require.NoError(t, err)
	require.NoError(t, store.InSession(ctx, st, func(s store.Session) error {
		ev, err := domain.InstantiateCommonEvent(app, common, time.Now())
		if err != nil {
			return err
		}
		return s.CreateEvent(ctx, ev)
	}))

	_, err = svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "login",
		NewParameters: []NewParameter{{Name: "level", Type: "integer", Version: 1}},
	})
	assert.True(t, errmodel.IsValidation(err))

	v, err := svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "login",
		NewParameters: []NewParameter{{Name: "custom_level", Type: "integer", Version: 1}},
	})
	require.NoError(t, err)
	assert.True(t, v.IsCommon)
	require.Len(t, v.Parameters, 2)
	assert.Equal(t, "method", v.Parameters[0].Name)
	assert.Equal(t, 0, v.Parameters[0].Version)
	assert.Equal(t, "custom_level", v.Parameters[1].Name)

	// Later common versions do not leak into the linked instance.
	_, err = svc.Catalog.AddCommonEventParameters(ctx, "login", []NewParameter{{Name: "provider", Type: "string", Version: 1}})
	require.NoError(t, err)
	v, err = svc.Events.GetByName(ctx, "game", "login")
	require.NoError(t, err)
	assert.Len(t, v.Parameters, 2)
}

func TestListGroupsSystemParameters(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	register(t, svc, "game")
	_, err := svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{Name: "purchase"})
	require.NoError(t, err)

	list, err := svc.Events.List(ctx, "game")
	require.NoError(t, err)
	require.Len(t, list.Events, 1)
	assert.Equal(t, "purchase", list.Events[0].Name)
	assert.Contains(t, list.ParameterTypes, "map<string,string>")
	require.Len(t, list.SystemParameters, 3)
	assert.Equal(t, "Atomic", list.SystemParameters[0].Name)
	assert.Len(t, list.SystemParameters[0].Parameters, 46)
	assert.Equal(t, "Device Context", list.SystemParameters[1].Name)
	assert.Equal(t, "Session Context", list.SystemParameters[2].Name)
}

func TestPrincipalsInvalidateConvergedOrganization(t *testing.T) {
	svc, st := newServices(t)
	ctx := context.Background()

	org, err := svc.Organizations.SetPrincipals(ctx, "algebra", []string{"user:a@example.com", " ", "user:a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:a@example.com"}, org.Principals)
	assert.Equal(t, domain.StatusNotReady, org.Status)
	converge(t, st)

	org, err = svc.Organizations.SetPrincipals(ctx, "algebra", []string{"user:a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, org.Status)

	_, err = svc.Organizations.SetPrincipals(ctx, "algebra", []string{"group:team@example.com"})
	require.NoError(t, err)
	org, err = svc.Organizations.Get(ctx, "algebra")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedsUpdate, org.Status)
	assert.Equal(t, []string{"group:team@example.com"}, org.Principals)
}

func TestContextParametersInvalidateContext(t *testing.T) {
	svc, st := newServices(t)
	ctx := context.Background()
	converge(t, st)

	_, err := svc.Catalog.CreateEventContext(ctx, NewSchema{Name: "geo"}, false)
	assert.True(t, errmodel.IsValidation(err))

	ec, err := svc.Catalog.AddEventContextParameters(ctx, "ctx_session_context",
		[]NewParameter{{Name: "session_length", Type: "integer", Version: 1}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedsUpdate, ec.Status)

	created, err := svc.Catalog.CreateEventContext(ctx, NewSchema{
		Name:       "ctx_geo_context",
		Parameters: []NewParameter{{Name: "country", Type: "string"}},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddedContextVendor, created.Schema.Vendor)
	assert.Equal(t, domain.StatusNotReady, created.Status)
}

func TestAtomicParameters(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	_, err := svc.Catalog.CreateAtomicParameter(ctx, NewAtomic{Name: "user_id", Type: "string"})
	assert.True(t, errmodel.IsConflict(err))

	_, err = svc.Catalog.CreateAtomicParameter(ctx, NewAtomic{Name: "cohort", Type: "string"})
	require.NoError(t, err)
	atomics, err := svc.Catalog.AtomicParameters(ctx)
	require.NoError(t, err)
	require.Len(t, atomics, 47)
	assert.Equal(t, "cohort", atomics[46].Name)
}

func TestRawSchemaPut(t *testing.T) {
	svc, st := newServices(t)
	ctx := context.Background()
	path := "com.acme/ping/jsonschema/1-0-0"

	_, err := svc.RawSchemas.Put(ctx, path, json.RawMessage(`{"type": 12}`))
	assert.True(t, errmodel.IsValidation(err))

	r, err := svc.RawSchemas.Put(ctx, path, json.RawMessage(`{"type":"object"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotReady, r.Status)
	converge(t, st)

	r, err = svc.RawSchemas.Put(ctx, path, json.RawMessage(`{ "type" : "object" }`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, r.Status, "identical content is a no-op")

	_, err = svc.RawSchemas.Put(ctx, path, json.RawMessage(`{"type":"object","title":"ping"}`))
	require.NoError(t, err)
	r, err = svc.RawSchemas.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedsUpdate, r.Status)
	assert.JSONEq(t, `{"type":"object","title":"ping"}`, string(r.Content))
}

func TestEventsByAppCatalog(t *testing.T) {
	svc, st := newServices(t)
	ctx := context.Background()
	register(t, svc, "game")
	_, err := svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "signup",
		NewParameters: []NewParameter{{Name: "email", Type: "string", IsGDPR: true}},
	})
	require.NoError(t, err)

	cat, err := svc.Apps.EventsByApp(ctx)
	require.NoError(t, err)
	assert.Empty(t, cat.Apps, "unconverged apps are not served")

	converge(t, st)
	register(t, svc, "pending")
	cat, err = svc.Apps.EventsByApp(ctx)
	require.NoError(t, err)
	require.Len(t, cat.Apps, 1)
	assert.Equal(t, domain.AppID("game"), cat.Apps[0].App.ID)
	assert.Equal(t, []string{"email"}, cat.Apps[0].GDPREventParameters["signup"])
	assert.Equal(t, []string{"advertising_id", "idfa"}, cat.GDPRContextParameters["ctx_device_context"])

	ready, err := svc.Apps.ListReady(ctx)
	require.NoError(t, err)
	assert.Len(t, ready, 1)
}

func TestUpdatesToInheritedParametersAreIgnored(t *testing.T) {
	svc, st := newServices(t)
	ctx := context.Background()
	app := register(t, svc, "game")
	common, err := svc.Catalog.CreateCommonEvent(ctx, NewSchema{
		Name:       "login",
		Parameters: []NewParameter{{Name: "method", Type: "string", Description: "login method"}},
	})
	require.NoError(t, err)
	require.NoError(t, store.InSession(ctx, st, func(s store.Session) error {
		ev, err := domain.InstantiateCommonEvent(app, common, time.Now())
		if err != nil {
			return err
		}
		return s.CreateEvent(ctx, ev)
	}))
	_, err = svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:          "login",
		NewParameters: []NewParameter{{Name: "custom_level", Type: "integer", Version: 1}},
	})
	require.NoError(t, err)

	v, err := svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name: "login",
		ExistingParameters: []ParameterUpdate{
			{Name: "method", Description: "overridden"},
			{Name: "custom_level", Description: "level reached"},
		},
	})
	require.NoError(t, err)
	require.Len(t, v.Parameters, 2)
	assert.Equal(t, "login method", v.Parameters[0].Description)
	assert.Equal(t, "level reached", v.Parameters[1].Description)

	_, err = svc.Events.CreateOrUpdate(ctx, "game", CreateOrUpdateEvent{
		Name:               "login",
		ExistingParameters: []ParameterUpdate{{Name: "missing"}},
	})
	assert.True(t, errmodel.IsNotFound(err))
}
