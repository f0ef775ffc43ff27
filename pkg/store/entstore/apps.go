package entstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
	"github.com/wilhg/metadata/pkg/store/entstore/migrate"
)

var appColumns = []string{"id", "organization_id", "timezone", "api_key", "status", "status_updated_at", "created_at", "revision"}

type appRow struct {
	app   *domain.App
	orgID int64
}

func scanApp(row scanner) (appRow, error) {
	var (
		a               domain.App
		orgID           int64
		id, tz, status  string
		updated, create timestamp
		rev             int64
	)
	if err := row.Scan(&id, &orgID, &tz, &a.APIKey, &status, &updated, &create, &rev); err != nil {
		return appRow{}, err
	}
	lc, err := scanStatus(status, updated, rev)
	if err != nil {
		return appRow{}, err
	}
	a.ID = domain.AppID(id)
	a.Timezone = domain.Timezone(tz)
	a.Lifecycle = lc
	a.CreatedAt = create.Time
	return appRow{app: &a, orgID: orgID}, nil
}

func (s *Session) CreateApp(ctx context.Context, a *domain.App) error {
	if a.Organization == nil || a.Organization.ID == 0 {
		return fmt.Errorf("app %s: organization is not saved", a.ID)
	}
	_, err := s.exec(ctx, s.builder().Insert(migrate.AppsTable.Name).
		Columns(appColumns...).
		Values(string(a.ID), a.Organization.ID, string(a.Timezone), a.APIKey, string(a.Status), a.StatusUpdatedAt.UTC(), a.CreatedAt.UTC(), a.Revision))
	if err != nil {
		return mapErr(err, fmt.Sprintf("app %s", a.ID), map[string]any{"app_id": string(a.ID)})
	}
	if err := s.saveDatasources(ctx, a); err != nil {
		return err
	}
	return s.saveIntegrations(ctx, a)
}

func (s *Session) selectApps() *entsql.Selector {
	return s.builder().Select(appColumns...).From(entsql.Table(migrate.AppsTable.Name))
}

func (s *Session) App(ctx context.Context, id domain.AppID) (*domain.App, error) {
	r, err := scanApp(s.queryRow(ctx, s.selectApps().Where(entsql.EQ("id", string(id)))))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("app %s", id), map[string]any{"app_id": string(id)})
	}
	if err := s.loadApp(ctx, r, map[int64]*domain.Organization{}); err != nil {
		return nil, err
	}
	return r.app, nil
}

func (s *Session) Apps(ctx context.Context, f store.StatusFilter) ([]*domain.App, error) {
	rows, err := s.query(ctx, withStatus(s.selectApps(), f).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	found, err := collect(rows, scanApp)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	orgs := map[int64]*domain.Organization{}
	out := make([]*domain.App, 0, len(found))
	for _, r := range found {
		if err := s.loadApp(ctx, r, orgs); err != nil {
			return nil, err
		}
		out = append(out, r.app)
	}
	return out, nil
}

func (s *Session) loadApp(ctx context.Context, r appRow, orgs map[int64]*domain.Organization) error {
	org, ok := orgs[r.orgID]
	if !ok {
		var err error
		if org, err = s.organizationByID(ctx, r.orgID); err != nil {
			return err
		}
		orgs[r.orgID] = org
	}
	r.app.Organization = org
	if err := s.loadDatasources(ctx, r.app); err != nil {
		return err
	}
	return s.loadIntegrations(ctx, r.app)
}

func (s *Session) SaveApp(ctx context.Context, a *domain.App) error {
	_, err := s.exec(ctx, s.builder().Update(migrate.AppsTable.Name).
		Set("timezone", string(a.Timezone)).
		Set("status", string(a.Status)).
		Set("status_updated_at", a.StatusUpdatedAt.UTC()).
		Add("revision", 1).
		Where(entsql.EQ("id", string(a.ID))))
	if err != nil {
		return fmt.Errorf("save app %s: %w", a.ID, err)
	}
	if err := s.saveDatasources(ctx, a); err != nil {
		return err
	}
	if err := s.saveIntegrations(ctx, a); err != nil {
		return err
	}
	a.Revision++
	return nil
}

func (s *Session) saveDatasources(ctx context.Context, a *domain.App) error {
	if len(a.Datasources) == 0 {
		return nil
	}
	ib := s.builder().Insert(migrate.DatasourcesTable.Name).
		Columns("app_id", "id", "has_data_from", "has_data_up_to")
	for _, ds := range a.Datasources {
		var upTo any
		if ds.HasDataUpTo != nil {
			upTo = ds.HasDataUpTo.String()
		}
		ib.Values(string(a.ID), ds.ID, ds.HasDataFrom.String(), upTo)
	}
	ib.OnConflict(
		entsql.ConflictColumns("app_id", "id"),
		entsql.ResolveWithNewValues(),
	)
	if _, err := s.exec(ctx, ib); err != nil {
		return mapErr(err, fmt.Sprintf("datasources of app %s", a.ID), map[string]any{"app_id": string(a.ID)})
	}
	return nil
}

func (s *Session) loadDatasources(ctx context.Context, a *domain.App) error {
	rows, err := s.query(ctx, s.builder().Select("id", "has_data_from", "has_data_up_to").
		From(entsql.Table(migrate.DatasourcesTable.Name)).
		Where(entsql.EQ("app_id", string(a.ID))).
		OrderBy("id"))
	if err != nil {
		return fmt.Errorf("load datasources of %s: %w", a.ID, err)
	}
	sources, err := collect(rows, func(r scanner) (*domain.Datasource, error) {
		var (
			ds   = domain.Datasource{AppID: a.ID}
			from string
			upTo sql.NullString
		)
		if err := r.Scan(&ds.ID, &from, &upTo); err != nil {
			return nil, err
		}
		d, err := civil.ParseDate(from)
		if err != nil {
			return nil, err
		}
		ds.HasDataFrom = d
		if upTo.Valid {
			u, err := civil.ParseDate(upTo.String)
			if err != nil {
				return nil, err
			}
			ds.HasDataUpTo = &u
		}
		return &ds, nil
	})
	if err != nil {
		return fmt.Errorf("load datasources of %s: %w", a.ID, err)
	}
	a.Datasources = sources
	return nil
}

func integrationPayloads(in domain.Integrations) map[domain.IntegrationKind]any {
	out := map[domain.IntegrationKind]any{}
	if in.Appsflyer != nil {
		out[domain.IntegrationAppsflyer] = in.Appsflyer
	}
	if in.AppsflyerCostETL != nil {
		out[domain.IntegrationAppsflyerCostETL] = in.AppsflyerCostETL
	}
	if in.ITunes != nil {
		out[domain.IntegrationITunes] = in.ITunes
	}
	if in.GooglePlay != nil {
		out[domain.IntegrationGooglePlay] = in.GooglePlay
	}
	return out
}

func (s *Session) saveIntegrations(ctx context.Context, a *domain.App) error {
	if _, err := s.exec(ctx, s.builder().Delete(migrate.AppIntegrationsTable.Name).
		Where(entsql.EQ("app_id", string(a.ID)))); err != nil {
		return fmt.Errorf("save integrations of %s: %w", a.ID, err)
	}
	payloads := integrationPayloads(a.Integrations)
	if len(payloads) == 0 {
		return nil
	}
	ib := s.builder().Insert(migrate.AppIntegrationsTable.Name).Columns("app_id", "kind", "payload")
	for kind, v := range payloads {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s integration: %w", kind, err)
		}
		ib.Values(string(a.ID), string(kind), string(b))
	}
	if _, err := s.exec(ctx, ib); err != nil {
		return mapErr(err, fmt.Sprintf("integrations of app %s", a.ID), map[string]any{"app_id": string(a.ID)})
	}
	return nil
}

func (s *Session) loadIntegrations(ctx context.Context, a *domain.App) error {
	rows, err := s.query(ctx, s.builder().Select("kind", "payload").
		From(entsql.Table(migrate.AppIntegrationsTable.Name)).
		Where(entsql.EQ("app_id", string(a.ID))))
	if err != nil {
		return fmt.Errorf("load integrations of %s: %w", a.ID, err)
	}
	type kv struct{ kind, payload string }
	found, err := collect(rows, func(r scanner) (kv, error) {
		var v kv
		err := r.Scan(&v.kind, &v.payload)
		return v, err
	})
	if err != nil {
		return fmt.Errorf("load integrations of %s: %w", a.ID, err)
	}
	var in domain.Integrations
	for _, v := range found {
		var target any
		switch domain.IntegrationKind(v.kind) {
		case domain.IntegrationAppsflyer:
			in.Appsflyer = &domain.AppsflyerIntegration{}
			target = in.Appsflyer
		case domain.IntegrationAppsflyerCostETL:
			in.AppsflyerCostETL = &domain.AppsflyerCostETLIntegration{}
			target = in.AppsflyerCostETL
		case domain.IntegrationITunes:
			in.ITunes = &domain.StoreITunes{}
			target = in.ITunes
		case domain.IntegrationGooglePlay:
			in.GooglePlay = &domain.StoreGooglePlay{}
			target = in.GooglePlay
		default:
			continue
		}
		if err := json.Unmarshal([]byte(v.payload), target); err != nil {
			return fmt.Errorf("decode %s integration of %s: %w", v.kind, a.ID, err)
		}
	}
	a.Integrations = in
	return nil
}
