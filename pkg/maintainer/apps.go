package maintainer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wilhg/metadata/pkg/adapters/warehouse"
	"github.com/wilhg/metadata/pkg/compiler"
	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// Apps builds the per-app warehouse layout: datasets, their mirrors in
// the organization's project, authorized passthrough views, auxiliary
// tables and one table set per event context. It also instantiates every
// common event the app is not linked to yet.
type Apps struct{ *Deps }

func (m *Apps) Name() string { return "apps" }

func (m *Apps) Maintain(ctx context.Context) error {
	return m.pass(ctx, m.Name(), func(ctx context.Context, s store.Session, log *logrus.Entry) error {
		pending, err := s.Apps(ctx, store.Not(domain.StatusSuccess))
		if err != nil || len(pending) == 0 {
			return err
		}
		if err := m.monitoring(ctx, log); err != nil {
			return err
		}
		contexts, err := s.EventContexts(ctx, store.ContextFilter{})
		if err != nil {
			return err
		}
		atomics, err := s.AtomicParameters(ctx)
		if err != nil {
			return err
		}
		commons, err := s.CommonEvents(ctx)
		if err != nil {
			return err
		}
		for i, app := range pending {
			l := log.WithFields(logrus.Fields{"app_id": string(app.ID), "idx": i + 1, "total": len(pending)})
			l.Info("maintaining app")
			if err := m.linkCommonEvents(ctx, s, l, app, commons); err != nil {
				return err
			}
			if err := m.maintainApp(ctx, l, app, contexts, atomics); err != nil {
				return err
			}
			if err := converge(ctx, s, l, app, m.now()); err != nil {
				return err
			}
		}
		return nil
	})
}

// monitoring maintains the artifacts shared by every app. The view is
// always replaced since its query may have changed between releases.
func (m *Apps) monitoring(ctx context.Context, log *logrus.Entry) error {
	project := m.project()
	if err := m.ensureDataset(ctx, log, project, compiler.MonitoringDataset); err != nil {
		return err
	}
	if err := m.ensureTable(ctx, log, compiler.BadEventsTableSpec(project)); err != nil {
		return err
	}
	ref := compiler.BadEventsViewRef(project)
	return m.apply(ctx, log, "create_view", ref.String(), func(ctx context.Context) error {
		return m.Warehouse.CreateOrReplaceView(ctx, ref, compiler.BadEventsViewQuery(project))
	})
}

func (m *Apps) linkCommonEvents(ctx context.Context, s store.Session, log *logrus.Entry, app *domain.App, commons []*domain.CommonEvent) error {
	linked, err := s.LinkedCommonEvents(ctx, app.ID)
	if err != nil {
		return err
	}
	for _, c := range commons {
		if linked[c.ID] {
			continue
		}
		ev, err := domain.InstantiateCommonEvent(app, c, m.now())
		if err != nil {
			return err
		}
		if err := s.CreateEvent(ctx, ev); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"event": c.Schema.Name, "version": ev.ParentCommonEventVersion}).Info("linked common event")
	}
	return nil
}

func (m *Apps) maintainApp(ctx context.Context, log *logrus.Entry, app *domain.App, contexts []*domain.EventContext, atomics []*domain.AtomicParameter) error {
	project := m.project()
	client := app.Organization.WarehouseProject

	if err := m.ensureDataset(ctx, log, project, compiler.FixDataset(app.ID)); err != nil {
		return err
	}
	if err := m.ensureTable(ctx, log, compiler.ExcludedUniqueIDsSpec(project, app.ID)); err != nil {
		return err
	}
	datasets := compiler.AppDatasets(app.ID)
	for _, ds := range datasets {
		if err := m.ensureDataset(ctx, log, project, ds.Name); err != nil {
			return err
		}
		if ds.MirrorDataset {
			if err := m.ensureDataset(ctx, log, client, ds.Name); err != nil {
				return err
			}
		}
	}
	if err := m.ensureTable(ctx, log, compiler.GDPRDeleteRequestLogSpec(project, app.ID)); err != nil {
		return err
	}
	for _, c := range contexts {
		cl := log.WithField("context", c.Schema.Name)
		if err := m.maintainEventTables(ctx, cl, app.ID, c.Schema.Name, c.Schema.Parameters, nil, atomics); err != nil {
			return err
		}
		if err := m.publish(ctx, cl, c); err != nil {
			return err
		}
	}
	// Views are authorized last so they cover the tables created above.
	for _, ds := range datasets {
		if !ds.MirrorTables {
			continue
		}
		if err := m.authorizeViews(ctx, log, project, client, ds.Name); err != nil {
			return err
		}
	}
	return m.clientBadEvents(ctx, log, app.ID, project, client)
}

// authorizeViews exposes every table of project.dataset as a passthrough
// view in client.dataset and grants those views read access on the source.
func (m *Apps) authorizeViews(ctx context.Context, log *logrus.Entry, project, client, dataset string) error {
	target := project + "." + dataset
	if m.DryRun {
		log.WithField("target", target).Debug("dry run, skipping authorized views")
		return nil
	}
	tables, err := m.Warehouse.ListTables(ctx, project, dataset)
	if err != nil {
		return external("list_tables", target, err)
	}
	if len(tables) == 0 {
		return nil
	}
	entries, err := m.Warehouse.DatasetAccess(ctx, project, dataset)
	if err != nil {
		return external("get_access", target, err)
	}
	granted := false
	for _, name := range tables {
		source := warehouse.TableRef{Project: project, Dataset: dataset, Table: name}
		view := warehouse.TableRef{Project: client, Dataset: dataset, Table: name}
		if err := m.apply(ctx, log, "create_view", view.String(), func(ctx context.Context) error {
			return m.Warehouse.CreateOrReplaceView(ctx, view, compiler.PassthroughQuery(source))
		}); err != nil {
			return err
		}
		if !warehouse.GrantsView(entries, view) {
			entries = append(entries, warehouse.AccessEntry{View: &view})
			granted = true
		}
	}
	if !granted {
		return nil
	}
	log.WithField("target", target).Info("granting authorized views")
	return m.apply(ctx, log, "set_access", target, func(ctx context.Context) error {
		return m.Warehouse.SetDatasetAccess(ctx, project, dataset, entries)
	})
}

// clientBadEvents creates the app-filtered bad-events view in the client
// project once. An existing view is left alone.
func (m *Apps) clientBadEvents(ctx context.Context, log *logrus.Entry, id domain.AppID, project, client string) error {
	view := compiler.ClientBadEventsViewRef(client, id)
	if m.DryRun {
		log.WithField("target", view.String()).Debug("dry run, skipping client bad events view")
		return nil
	}
	existing, err := m.Warehouse.Table(ctx, view)
	if err != nil {
		return external("get_table", view.String(), err)
	}
	if existing != nil {
		return nil
	}
	if err := m.apply(ctx, log, "create_view", view.String(), func(ctx context.Context) error {
		return m.Warehouse.CreateOrReplaceView(ctx, view, compiler.ClientBadEventsViewQuery(project, id))
	}); err != nil {
		return err
	}
	target := project + "." + compiler.MonitoringDataset
	entries, err := m.Warehouse.DatasetAccess(ctx, project, compiler.MonitoringDataset)
	if err != nil {
		return external("get_access", target, err)
	}
	if warehouse.GrantsView(entries, view) {
		return nil
	}
	entries = append(entries, warehouse.AccessEntry{View: &view})
	return m.apply(ctx, log, "set_access", target, func(ctx context.Context) error {
		return m.Warehouse.SetDatasetAccess(ctx, project, compiler.MonitoringDataset, entries)
	})
}
