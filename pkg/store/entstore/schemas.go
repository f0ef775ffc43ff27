package entstore

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store/entstore/migrate"
)

var (
	schemaColumns    = []string{"id", "vendor", "name", "alias", "description", "created_at"}
	parameterColumns = []string{"id", "name", "type", "introduced_at_version", "alias", "description", "is_gdpr", "is_gdpr_updated_at", "created_at"}
)

func (s *Session) insertSchema(ctx context.Context, sch *domain.Schema) error {
	id, err := s.insertID(ctx, s.builder().Insert(migrate.SchemasTable.Name).
		Columns("vendor", "name", "alias", "description", "created_at").
		Values(sch.Vendor, sch.Name, sch.Alias, sch.Description, sch.CreatedAt.UTC()))
	if err != nil {
		return mapErr(err, fmt.Sprintf("schema %s", sch.Name), map[string]any{"schema": sch.Name})
	}
	sch.ID = id
	return s.insertParameters(ctx, sch)
}

// insertParameters stores the parameters that have no id yet.
func (s *Session) insertParameters(ctx context.Context, sch *domain.Schema) error {
	for _, p := range sch.Parameters {
		if p.ID != 0 {
			continue
		}
		id, err := s.insertID(ctx, s.builder().Insert(migrate.SchemaParametersTable.Name).
			Columns("schema_id", "name", "type", "introduced_at_version", "alias", "description", "is_gdpr", "is_gdpr_updated_at", "created_at").
			Values(sch.ID, p.Name, string(p.Type), p.IntroducedAtVersion, p.Alias, p.Description, p.IsGDPR, p.IsGDPRUpdatedAt.UTC(), p.CreatedAt.UTC()))
		if err != nil {
			return mapErr(err, fmt.Sprintf("parameter %s of %s", p.Name, sch.Name),
				map[string]any{"schema": sch.Name, "parameter": p.Name})
		}
		p.ID = id
	}
	return nil
}

// saveSchema updates schema and parameter metadata and appends new parameters.
func (s *Session) saveSchema(ctx context.Context, sch *domain.Schema) error {
	if _, err := s.exec(ctx, s.builder().Update(migrate.SchemasTable.Name).
		Set("alias", sch.Alias).
		Set("description", sch.Description).
		Where(entsql.EQ("id", sch.ID))); err != nil {
		return fmt.Errorf("save schema %s: %w", sch.Name, err)
	}
	for _, p := range sch.Parameters {
		if p.ID == 0 {
			continue
		}
		if _, err := s.exec(ctx, s.builder().Update(migrate.SchemaParametersTable.Name).
			Set("alias", p.Alias).
			Set("description", p.Description).
			Set("is_gdpr", p.IsGDPR).
			Set("is_gdpr_updated_at", p.IsGDPRUpdatedAt.UTC()).
			Where(entsql.EQ("id", p.ID))); err != nil {
			return fmt.Errorf("save parameter %s of %s: %w", p.Name, sch.Name, err)
		}
	}
	return s.insertParameters(ctx, sch)
}

func (s *Session) loadSchema(ctx context.Context, id int64) (*domain.Schema, error) {
	var (
		sch     domain.Schema
		created timestamp
	)
	err := s.queryRow(ctx, s.builder().Select(schemaColumns...).
		From(entsql.Table(migrate.SchemasTable.Name)).
		Where(entsql.EQ("id", id))).
		Scan(&sch.ID, &sch.Vendor, &sch.Name, &sch.Alias, &sch.Description, &created)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("schema %d", id), map[string]any{"schema_id": id})
	}
	sch.CreatedAt = created.Time

	rows, err := s.query(ctx, s.builder().Select(parameterColumns...).
		From(entsql.Table(migrate.SchemaParametersTable.Name)).
		Where(entsql.EQ("schema_id", id)).
		OrderBy("introduced_at_version", "id"))
	if err != nil {
		return nil, fmt.Errorf("load parameters of %s: %w", sch.Name, err)
	}
	params, err := collect(rows, scanParameter)
	if err != nil {
		return nil, fmt.Errorf("load parameters of %s: %w", sch.Name, err)
	}
	sch.Parameters = params
	return &sch, nil
}

func scanParameter(row scanner) (*domain.SchemaParameter, error) {
	var (
		p                domain.SchemaParameter
		typ              string
		gdprAt, creation timestamp
	)
	if err := row.Scan(&p.ID, &p.Name, &typ, &p.IntroducedAtVersion, &p.Alias, &p.Description, &p.IsGDPR, &gdprAt, &creation); err != nil {
		return nil, err
	}
	t, err := domain.ParseParameterType(typ)
	if err != nil {
		return nil, err
	}
	p.Type = t
	p.IsGDPRUpdatedAt = gdprAt.Time
	p.CreatedAt = creation.Time
	return &p, nil
}
