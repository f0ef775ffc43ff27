package entstore

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
	"github.com/wilhg/metadata/pkg/store/entstore/migrate"
)

type statusTable struct {
	table string
	key   string
}

var statusTables = map[store.Kind]statusTable{
	store.KindOrganization: {migrate.OrganizationsTable.Name, "id"},
	store.KindApp:          {migrate.AppsTable.Name, "id"},
	store.KindEvent:        {migrate.EventsTable.Name, "id"},
	store.KindEventContext: {migrate.EventContextsTable.Name, "id"},
	store.KindRawSchema:    {migrate.RawSchemasTable.Name, "path"},
}

func lookupStatusTable(kind store.Kind) (statusTable, error) {
	t, ok := statusTables[kind]
	if !ok {
		return statusTable{}, fmt.Errorf("no status table for kind %q", kind)
	}
	return t, nil
}

func (s *Session) setStatus(ctx context.Context, table string, to domain.Status, at time.Time, where *entsql.Predicate) (int64, error) {
	res, err := s.exec(ctx, s.builder().Update(table).
		Set("status", string(to)).
		Set("status_updated_at", at.UTC()).
		Where(where))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Session) Converge(ctx context.Context, ref store.Ref, rev int64, at time.Time) (bool, error) {
	t, err := lookupStatusTable(ref.Kind)
	if err != nil {
		return false, err
	}
	n, err := s.setStatus(ctx, t.table, domain.StatusSuccess, at, entsql.And(
		entsql.EQ(t.key, ref.Key),
		entsql.EQ("revision", rev),
		entsql.NEQ("status", string(domain.StatusSuccess)),
	))
	if err != nil {
		return false, fmt.Errorf("converge %s %v: %w", ref.Kind, ref.Key, err)
	}
	return n == 1, nil
}

func (s *Session) Invalidate(ctx context.Context, ref store.Ref, at time.Time) (bool, error) {
	t, err := lookupStatusTable(ref.Kind)
	if err != nil {
		return false, err
	}
	n, err := s.setStatus(ctx, t.table, domain.StatusNeedsUpdate, at, entsql.And(
		entsql.EQ(t.key, ref.Key),
		entsql.EQ("status", string(domain.StatusSuccess)),
	))
	if err != nil {
		return false, fmt.Errorf("invalidate %s %v: %w", ref.Kind, ref.Key, err)
	}
	return n == 1, nil
}

func (s *Session) InvalidateAll(ctx context.Context, kind store.Kind, at time.Time) (int64, error) {
	t, err := lookupStatusTable(kind)
	if err != nil {
		return 0, err
	}
	n, err := s.setStatus(ctx, t.table, domain.StatusNeedsUpdate, at, entsql.EQ("status", string(domain.StatusSuccess)))
	if err != nil {
		return 0, fmt.Errorf("invalidate %s rows: %w", kind, err)
	}
	return n, nil
}
