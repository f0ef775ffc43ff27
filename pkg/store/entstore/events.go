package entstore

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
	"github.com/wilhg/metadata/pkg/store/entstore/migrate"
)

var eventColumns = []string{"id", "app_id", "schema_id", "parent_common_event_id", "parent_common_event_version", "status", "status_updated_at", "revision"}

type eventRow struct {
	event    *domain.Event
	schemaID int64
	parentID sql.NullInt64
}

func scanEvent(row scanner) (eventRow, error) {
	var (
		r       eventRow
		e       domain.Event
		appID   string
		status  string
		updated timestamp
		rev     int64
	)
	if err := row.Scan(&e.ID, &appID, &r.schemaID, &r.parentID, &e.ParentCommonEventVersion, &status, &updated, &rev); err != nil {
		return eventRow{}, err
	}
	lc, err := scanStatus(status, updated, rev)
	if err != nil {
		return eventRow{}, err
	}
	e.AppID = domain.AppID(appID)
	e.Lifecycle = lc
	r.event = &e
	return r, nil
}

func (s *Session) CreateEvent(ctx context.Context, e *domain.Event) error {
	if err := s.insertSchema(ctx, e.Schema); err != nil {
		return err
	}
	var parent any
	if e.ParentCommonEvent != nil {
		parent = e.ParentCommonEvent.ID
	}
	id, err := s.insertID(ctx, s.builder().Insert(migrate.EventsTable.Name).
		Columns("app_id", "name", "schema_id", "parent_common_event_id", "parent_common_event_version", "status", "status_updated_at").
		Values(string(e.AppID), e.Schema.Name, e.Schema.ID, parent, e.ParentCommonEventVersion, string(e.Status), e.StatusUpdatedAt.UTC()))
	if err != nil {
		return mapErr(err, fmt.Sprintf("event %s of app %s", e.Schema.Name, e.AppID),
			map[string]any{"app_id": string(e.AppID), "event": e.Schema.Name})
	}
	e.ID = id
	return nil
}

func (s *Session) selectEvents() *entsql.Selector {
	return s.builder().Select(eventColumns...).From(entsql.Table(migrate.EventsTable.Name))
}

func (s *Session) Event(ctx context.Context, appID domain.AppID, name string) (*domain.Event, error) {
	r, err := scanEvent(s.queryRow(ctx, s.selectEvents().Where(entsql.And(
		entsql.EQ("app_id", string(appID)),
		entsql.EQ("name", name),
	))))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("event %s of app %s", name, appID),
			map[string]any{"app_id": string(appID), "event": name})
	}
	if err := s.loadEvent(ctx, r, map[int64]*domain.CommonEvent{}); err != nil {
		return nil, err
	}
	return r.event, nil
}

func (s *Session) Events(ctx context.Context, f store.EventFilter) ([]*domain.Event, error) {
	sel := withStatus(s.selectEvents(), f.Status)
	if f.AppID != "" {
		sel.Where(entsql.EQ("app_id", string(f.AppID)))
	}
	rows, err := s.query(ctx, sel.OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	found, err := collect(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	commons := map[int64]*domain.CommonEvent{}
	out := make([]*domain.Event, 0, len(found))
	for _, r := range found {
		if err := s.loadEvent(ctx, r, commons); err != nil {
			return nil, err
		}
		out = append(out, r.event)
	}
	return out, nil
}

func (s *Session) loadEvent(ctx context.Context, r eventRow, commons map[int64]*domain.CommonEvent) error {
	sch, err := s.loadSchema(ctx, r.schemaID)
	if err != nil {
		return err
	}
	r.event.Schema = sch
	if !r.parentID.Valid {
		return nil
	}
	parent, ok := commons[r.parentID.Int64]
	if !ok {
		if parent, err = s.commonEventByID(ctx, r.parentID.Int64); err != nil {
			return err
		}
		commons[r.parentID.Int64] = parent
	}
	r.event.ParentCommonEvent = parent
	return nil
}

func (s *Session) SaveEvent(ctx context.Context, e *domain.Event) error {
	if err := s.saveSchema(ctx, e.Schema); err != nil {
		return err
	}
	if _, err := s.exec(ctx, s.builder().Update(migrate.EventsTable.Name).
		Set("status", string(e.Status)).
		Set("status_updated_at", e.StatusUpdatedAt.UTC()).
		Add("revision", 1).
		Where(entsql.EQ("id", e.ID))); err != nil {
		return fmt.Errorf("save event %s of app %s: %w", e.Schema.Name, e.AppID, err)
	}
	e.Revision++
	return nil
}

func (s *Session) LinkedCommonEvents(ctx context.Context, appID domain.AppID) (map[int64]bool, error) {
	rows, err := s.query(ctx, s.builder().Select("parent_common_event_id").
		From(entsql.Table(migrate.EventsTable.Name)).
		Where(entsql.And(
			entsql.EQ("app_id", string(appID)),
			entsql.NotNull("parent_common_event_id"),
		)))
	if err != nil {
		return nil, fmt.Errorf("linked common events of %s: %w", appID, err)
	}
	ids, err := collect(rows, func(r scanner) (int64, error) {
		var id int64
		err := r.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("linked common events of %s: %w", appID, err)
	}
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
