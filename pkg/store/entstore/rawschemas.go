package entstore

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
	"github.com/wilhg/metadata/pkg/store/entstore/migrate"
)

var rawSchemaColumns = []string{"path", "content", "status", "status_updated_at", "created_at", "revision"}

func scanRawSchema(row scanner) (*domain.RawSchema, error) {
	var (
		r                domain.RawSchema
		content, status  string
		updated, created timestamp
		rev              int64
	)
	if err := row.Scan(&r.Path, &content, &status, &updated, &created, &rev); err != nil {
		return nil, err
	}
	lc, err := scanStatus(status, updated, rev)
	if err != nil {
		return nil, err
	}
	r.Content = json.RawMessage(content)
	r.Lifecycle = lc
	r.CreatedAt = created.Time
	return &r, nil
}

func (s *Session) CreateRawSchema(ctx context.Context, r *domain.RawSchema) error {
	_, err := s.exec(ctx, s.builder().Insert(migrate.RawSchemasTable.Name).
		Columns(rawSchemaColumns...).
		Values(r.Path, string(r.Content), string(r.Status), r.StatusUpdatedAt.UTC(), r.CreatedAt.UTC(), r.Revision))
	return mapErr(err, fmt.Sprintf("raw schema %s", r.Path), map[string]any{"path": r.Path})
}

func (s *Session) selectRawSchemas() *entsql.Selector {
	return s.builder().Select(rawSchemaColumns...).From(entsql.Table(migrate.RawSchemasTable.Name))
}

func (s *Session) RawSchema(ctx context.Context, path string) (*domain.RawSchema, error) {
	r, err := scanRawSchema(s.queryRow(ctx, s.selectRawSchemas().Where(entsql.EQ("path", path))))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("raw schema %s", path), map[string]any{"path": path})
	}
	return r, nil
}

func (s *Session) RawSchemas(ctx context.Context, f store.StatusFilter) ([]*domain.RawSchema, error) {
	rows, err := s.query(ctx, withStatus(s.selectRawSchemas(), f).OrderBy("path"))
	if err != nil {
		return nil, fmt.Errorf("list raw schemas: %w", err)
	}
	out, err := collect(rows, scanRawSchema)
	if err != nil {
		return nil, fmt.Errorf("list raw schemas: %w", err)
	}
	return out, nil
}

func (s *Session) SaveRawSchema(ctx context.Context, r *domain.RawSchema) error {
	if _, err := s.exec(ctx, s.builder().Update(migrate.RawSchemasTable.Name).
		Set("content", string(r.Content)).
		Set("status", string(r.Status)).
		Set("status_updated_at", r.StatusUpdatedAt.UTC()).
		Add("revision", 1).
		Where(entsql.EQ("path", r.Path))); err != nil {
		return fmt.Errorf("save raw schema %s: %w", r.Path, err)
	}
	r.Revision++
	return nil
}
