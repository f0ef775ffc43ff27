package entstore

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
	"github.com/wilhg/metadata/pkg/store/entstore/migrate"
)

type commonRow struct {
	id       int64
	schemaID int64
}

func scanCommon(row scanner) (commonRow, error) {
	var r commonRow
	err := row.Scan(&r.id, &r.schemaID)
	return r, err
}

func (s *Session) CreateCommonEvent(ctx context.Context, c *domain.CommonEvent) error {
	if err := s.insertSchema(ctx, c.Schema); err != nil {
		return err
	}
	id, err := s.insertID(ctx, s.builder().Insert(migrate.CommonEventsTable.Name).
		Columns("name", "schema_id").
		Values(c.Schema.Name, c.Schema.ID))
	if err != nil {
		return mapErr(err, fmt.Sprintf("common event %s", c.Schema.Name), map[string]any{"event": c.Schema.Name})
	}
	c.ID = id
	return nil
}

func (s *Session) selectCommons() *entsql.Selector {
	return s.builder().Select("id", "schema_id").From(entsql.Table(migrate.CommonEventsTable.Name))
}

func (s *Session) loadCommon(ctx context.Context, r commonRow) (*domain.CommonEvent, error) {
	sch, err := s.loadSchema(ctx, r.schemaID)
	if err != nil {
		return nil, err
	}
	return &domain.CommonEvent{ID: r.id, Schema: sch}, nil
}

func (s *Session) CommonEvent(ctx context.Context, name string) (*domain.CommonEvent, error) {
	r, err := scanCommon(s.queryRow(ctx, s.selectCommons().Where(entsql.EQ("name", name))))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("common event %s", name), map[string]any{"event": name})
	}
	return s.loadCommon(ctx, r)
}

func (s *Session) commonEventByID(ctx context.Context, id int64) (*domain.CommonEvent, error) {
	r, err := scanCommon(s.queryRow(ctx, s.selectCommons().Where(entsql.EQ("id", id))))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("common event %d", id), map[string]any{"common_event_id": id})
	}
	return s.loadCommon(ctx, r)
}

func (s *Session) CommonEvents(ctx context.Context) ([]*domain.CommonEvent, error) {
	rows, err := s.query(ctx, s.selectCommons().OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list common events: %w", err)
	}
	found, err := collect(rows, scanCommon)
	if err != nil {
		return nil, fmt.Errorf("list common events: %w", err)
	}
	out := make([]*domain.CommonEvent, 0, len(found))
	for _, r := range found {
		c, err := s.loadCommon(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Session) SaveCommonEvent(ctx context.Context, c *domain.CommonEvent) error {
	return s.saveSchema(ctx, c.Schema)
}

var contextColumns = []string{"id", "schema_id", "embedded_in_event", "status", "status_updated_at", "revision"}

type contextRow struct {
	ctx      *domain.EventContext
	schemaID int64
}

func scanContext(row scanner) (contextRow, error) {
	var (
		c       domain.EventContext
		r       contextRow
		status  string
		updated timestamp
		rev     int64
	)
	if err := row.Scan(&c.ID, &r.schemaID, &c.EmbeddedInEvent, &status, &updated, &rev); err != nil {
		return contextRow{}, err
	}
	lc, err := scanStatus(status, updated, rev)
	if err != nil {
		return contextRow{}, err
	}
	c.Lifecycle = lc
	r.ctx = &c
	return r, nil
}

func (s *Session) CreateEventContext(ctx context.Context, c *domain.EventContext) error {
	if err := s.insertSchema(ctx, c.Schema); err != nil {
		return err
	}
	id, err := s.insertID(ctx, s.builder().Insert(migrate.EventContextsTable.Name).
		Columns("name", "schema_id", "embedded_in_event", "status", "status_updated_at").
		Values(c.Schema.Name, c.Schema.ID, c.EmbeddedInEvent, string(c.Status), c.StatusUpdatedAt.UTC()))
	if err != nil {
		return mapErr(err, fmt.Sprintf("event context %s", c.Schema.Name), map[string]any{"context": c.Schema.Name})
	}
	c.ID = id
	return nil
}

func (s *Session) selectContexts() *entsql.Selector {
	return s.builder().Select(contextColumns...).From(entsql.Table(migrate.EventContextsTable.Name))
}

func (s *Session) EventContext(ctx context.Context, name string) (*domain.EventContext, error) {
	r, err := scanContext(s.queryRow(ctx, s.selectContexts().Where(entsql.EQ("name", name))))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("event context %s", name), map[string]any{"context": name})
	}
	if r.ctx.Schema, err = s.loadSchema(ctx, r.schemaID); err != nil {
		return nil, err
	}
	return r.ctx, nil
}

func (s *Session) EventContexts(ctx context.Context, f store.ContextFilter) ([]*domain.EventContext, error) {
	sel := withStatus(s.selectContexts(), f.Status)
	if f.Embedded != nil {
		sel.Where(entsql.EQ("embedded_in_event", *f.Embedded))
	}
	rows, err := s.query(ctx, sel.OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list event contexts: %w", err)
	}
	found, err := collect(rows, scanContext)
	if err != nil {
		return nil, fmt.Errorf("list event contexts: %w", err)
	}
	out := make([]*domain.EventContext, 0, len(found))
	for _, r := range found {
		if r.ctx.Schema, err = s.loadSchema(ctx, r.schemaID); err != nil {
			return nil, err
		}
		out = append(out, r.ctx)
	}
	return out, nil
}

func (s *Session) SaveEventContext(ctx context.Context, c *domain.EventContext) error {
	if err := s.saveSchema(ctx, c.Schema); err != nil {
		return err
	}
	if _, err := s.exec(ctx, s.builder().Update(migrate.EventContextsTable.Name).
		Set("status", string(c.Status)).
		Set("status_updated_at", c.StatusUpdatedAt.UTC()).
		Add("revision", 1).
		Where(entsql.EQ("id", c.ID))); err != nil {
		return fmt.Errorf("save event context %s: %w", c.Schema.Name, err)
	}
	c.Revision++
	return nil
}

func (s *Session) CreateAtomicParameter(ctx context.Context, a *domain.AtomicParameter) error {
	_, err := s.insertID(ctx, s.builder().Insert(migrate.AtomicParametersTable.Name).
		Columns("name", "type", "description", "is_gdpr", "created_at").
		Values(a.Name, string(a.Type), a.Description, a.IsGDPR, a.CreatedAt.UTC()))
	return mapErr(err, fmt.Sprintf("atomic parameter %s", a.Name), map[string]any{"parameter": a.Name})
}

// AtomicParameters returns atomics in insertion order, which is also
// their column order in read views.
func (s *Session) AtomicParameters(ctx context.Context) ([]*domain.AtomicParameter, error) {
	rows, err := s.query(ctx, s.builder().Select("name", "type", "description", "is_gdpr", "created_at").
		From(entsql.Table(migrate.AtomicParametersTable.Name)).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list atomic parameters: %w", err)
	}
	out, err := collect(rows, func(r scanner) (*domain.AtomicParameter, error) {
		var (
			a       domain.AtomicParameter
			typ     string
			created timestamp
		)
		if err := r.Scan(&a.Name, &typ, &a.Description, &a.IsGDPR, &created); err != nil {
			return nil, err
		}
		t, err := domain.ParseParameterType(typ)
		if err != nil {
			return nil, err
		}
		a.Type = t
		a.CreatedAt = created.Time
		return &a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list atomic parameters: %w", err)
	}
	return out, nil
}
