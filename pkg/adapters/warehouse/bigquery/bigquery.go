// Package bigquery implements warehouse.TableStore on BigQuery.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/wilhg/metadata/pkg/adapters/warehouse"
)

type Store struct {
	client *bigquery.Client
	region string
	log    *logrus.Logger
}

var _ warehouse.TableStore = (*Store)(nil)

// New opens a client billed to project. Queries run in region.
func New(ctx context.Context, project, region string, log *logrus.Logger, opts ...option.ClientOption) (*Store, error) {
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return &Store{client: client, region: region, log: log}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Project() string { return s.client.Project() }

func hasStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

func (s *Store) EnsureDataset(ctx context.Context, project, name, region string) error {
	ds := s.client.DatasetInProject(project, name)
	if _, err := ds.Metadata(ctx); err == nil {
		return nil
	} else if !hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("get dataset %s.%s: %w", project, name, err)
	}
	s.log.WithFields(logrus.Fields{"project": project, "dataset": name}).Info("creating dataset")
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: region}); err != nil && !hasStatus(err, http.StatusConflict) {
		return fmt.Errorf("create dataset %s.%s: %w", project, name, err)
	}
	return nil
}

func (s *Store) table(ref warehouse.TableRef) *bigquery.Table {
	return s.client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table)
}

func (s *Store) Table(ctx context.Context, ref warehouse.TableRef) (*warehouse.Table, error) {
	md, err := s.table(ref).Metadata(ctx)
	if hasStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get table %s: %w", ref, err)
	}
	return &warehouse.Table{Ref: ref, Fields: fromSchema(md.Schema)}, nil
}

func (s *Store) CreateTable(ctx context.Context, spec warehouse.TableSpec) error {
	md := &bigquery.TableMetadata{Schema: toSchema(spec.Fields)}
	if p := spec.Partitioning; p != nil {
		md.TimePartitioning = &bigquery.TimePartitioning{
			Type:       bigquery.DayPartitioningType,
			Field:      p.Field,
			Expiration: p.Expiration,
		}
	}
	s.log.WithField("table", spec.Ref.String()).Info("creating table")
	if err := s.table(spec.Ref).Create(ctx, md); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Ref, err)
	}
	return nil
}

func (s *Store) AlterTableAddFields(ctx context.Context, ref warehouse.TableRef, additions []warehouse.Field) error {
	t := s.table(ref)
	md, err := t.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("get table %s: %w", ref, err)
	}
	merged := warehouse.Merge(fromSchema(md.Schema), additions)
	s.log.WithFields(logrus.Fields{"table": ref.String(), "additions": len(additions)}).Info("updating table schema")
	if _, err := t.Update(ctx, bigquery.TableMetadataToUpdate{Schema: toSchema(merged)}, md.ETag); err != nil {
		return fmt.Errorf("update table %s: %w", ref, err)
	}
	return nil
}

func (s *Store) CreateOrReplaceView(ctx context.Context, ref warehouse.TableRef, query string) error {
	sql := fmt.Sprintf("CREATE OR REPLACE VIEW `%s` AS\n%s", ref, query)
	s.log.WithField("view", ref.String()).Debug(sql)
	q := s.client.Query(sql)
	q.Location = s.region
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("create view %s: %w", ref, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("create view %s: %w", ref, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("create view %s: %w", ref, err)
	}
	return nil
}

func (s *Store) ListTables(ctx context.Context, project, dataset string) ([]string, error) {
	it := s.client.DatasetInProject(project, dataset).Tables(ctx)
	var out []string
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tables of %s.%s: %w", project, dataset, err)
		}
		out = append(out, t.TableID)
	}
	return out, nil
}

func (s *Store) DatasetAccess(ctx context.Context, project, dataset string) ([]warehouse.AccessEntry, error) {
	md, err := s.client.DatasetInProject(project, dataset).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("get dataset %s.%s: %w", project, dataset, err)
	}
	out := make([]warehouse.AccessEntry, 0, len(md.Access))
	for _, a := range md.Access {
		out = append(out, fromAccess(a))
	}
	return out, nil
}

func (s *Store) SetDatasetAccess(ctx context.Context, project, dataset string, entries []warehouse.AccessEntry) error {
	ds := s.client.DatasetInProject(project, dataset)
	md, err := ds.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("get dataset %s.%s: %w", project, dataset, err)
	}
	access := make([]*bigquery.AccessEntry, 0, len(entries))
	for _, e := range entries {
		access = append(access, s.toAccess(e))
	}
	if _, err := ds.Update(ctx, bigquery.DatasetMetadataToUpdate{Access: access}, md.ETag); err != nil {
		return fmt.Errorf("update access of %s.%s: %w", project, dataset, err)
	}
	return nil
}

func fromAccess(a *bigquery.AccessEntry) warehouse.AccessEntry {
	e := warehouse.AccessEntry{Role: string(a.Role), Entity: a.Entity, Native: a}
	if a.View != nil {
		e.EntityType = "view"
		e.View = &warehouse.TableRef{Project: a.View.ProjectID, Dataset: a.View.DatasetID, Table: a.View.TableID}
	}
	return e
}

func (s *Store) toAccess(e warehouse.AccessEntry) *bigquery.AccessEntry {
	if native, ok := e.Native.(*bigquery.AccessEntry); ok {
		return native
	}
	if e.View != nil {
		return &bigquery.AccessEntry{EntityType: bigquery.ViewEntity, View: s.table(*e.View)}
	}
	return &bigquery.AccessEntry{Role: bigquery.AccessRole(e.Role), EntityType: bigquery.SpecialGroupEntity, Entity: e.Entity}
}

func toSchema(fields []warehouse.Field) bigquery.Schema {
	out := make(bigquery.Schema, 0, len(fields))
	for _, f := range fields {
		out = append(out, &bigquery.FieldSchema{
			Name:                   f.Name,
			Type:                   bigquery.FieldType(f.Type),
			Description:            f.Description,
			Repeated:               f.Mode == warehouse.ModeRepeated,
			Required:               f.Mode == warehouse.ModeRequired,
			DefaultValueExpression: f.DefaultValueExpression,
			Schema:                 toSchema(f.Fields),
		})
	}
	return out
}

func fromSchema(schema bigquery.Schema) []warehouse.Field {
	out := make([]warehouse.Field, 0, len(schema))
	for _, f := range schema {
		mode := warehouse.ModeNullable
		switch {
		case f.Repeated:
			mode = warehouse.ModeRepeated
		case f.Required:
			mode = warehouse.ModeRequired
		}
		out = append(out, warehouse.Field{
			Name:                   f.Name,
			Type:                   warehouse.FieldType(f.Type),
			Mode:                   mode,
			Description:            f.Description,
			DefaultValueExpression: f.DefaultValueExpression,
			Fields:                 fromSchema(f.Schema),
		})
	}
	return out
}
