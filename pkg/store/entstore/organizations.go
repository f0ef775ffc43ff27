package entstore

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
	"github.com/wilhg/metadata/pkg/store/entstore/migrate"
)

var organizationColumns = []string{"id", "name", "warehouse_project", "status", "status_updated_at", "created_at", "revision"}

func scanOrganization(row scanner) (*domain.Organization, error) {
	var (
		o               domain.Organization
		status          string
		updated, create timestamp
		rev             int64
	)
	if err := row.Scan(&o.ID, &o.Name, &o.WarehouseProject, &status, &updated, &create, &rev); err != nil {
		return nil, err
	}
	lc, err := scanStatus(status, updated, rev)
	if err != nil {
		return nil, err
	}
	o.Lifecycle = lc
	o.CreatedAt = create.Time
	return &o, nil
}

func (s *Session) CreateOrganization(ctx context.Context, o *domain.Organization) error {
	id, err := s.insertID(ctx, s.builder().Insert(migrate.OrganizationsTable.Name).
		Columns("name", "warehouse_project", "status", "status_updated_at", "created_at").
		Values(o.Name, o.WarehouseProject, string(o.Status), o.StatusUpdatedAt.UTC(), o.CreatedAt.UTC()))
	if err != nil {
		return mapErr(err, fmt.Sprintf("organization %s", o.Name), map[string]any{"organization": o.Name})
	}
	o.ID = id
	return s.writePrincipals(ctx, o)
}

func (s *Session) selectOrganizations() *entsql.Selector {
	return s.builder().Select(organizationColumns...).From(entsql.Table(migrate.OrganizationsTable.Name))
}

func (s *Session) OrganizationByName(ctx context.Context, name string) (*domain.Organization, error) {
	o, err := scanOrganization(s.queryRow(ctx, s.selectOrganizations().Where(entsql.EQ("name", name))))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("organization %s", name), map[string]any{"organization": name})
	}
	return o, s.loadPrincipals(ctx, o)
}

func (s *Session) organizationByID(ctx context.Context, id int64) (*domain.Organization, error) {
	o, err := scanOrganization(s.queryRow(ctx, s.selectOrganizations().Where(entsql.EQ("id", id))))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("organization %d", id), map[string]any{"organization_id": id})
	}
	return o, s.loadPrincipals(ctx, o)
}

func (s *Session) Organizations(ctx context.Context, f store.StatusFilter) ([]*domain.Organization, error) {
	rows, err := s.query(ctx, withStatus(s.selectOrganizations(), f).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	orgs, err := collect(rows, scanOrganization)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	for _, o := range orgs {
		if err := s.loadPrincipals(ctx, o); err != nil {
			return nil, err
		}
	}
	return orgs, nil
}

func (s *Session) SaveOrganization(ctx context.Context, o *domain.Organization) error {
	_, err := s.exec(ctx, s.builder().Update(migrate.OrganizationsTable.Name).
		Set("warehouse_project", o.WarehouseProject).
		Set("status", string(o.Status)).
		Set("status_updated_at", o.StatusUpdatedAt.UTC()).
		Add("revision", 1).
		Where(entsql.EQ("id", o.ID)))
	if err != nil {
		return fmt.Errorf("save organization %s: %w", o.Name, err)
	}
	if _, err := s.exec(ctx, s.builder().Delete(migrate.OrganizationPrincipalsTable.Name).
		Where(entsql.EQ("organization_id", o.ID))); err != nil {
		return fmt.Errorf("save organization %s principals: %w", o.Name, err)
	}
	if err := s.writePrincipals(ctx, o); err != nil {
		return err
	}
	o.Revision++
	return nil
}

func (s *Session) writePrincipals(ctx context.Context, o *domain.Organization) error {
	if len(o.Principals) == 0 {
		return nil
	}
	ib := s.builder().Insert(migrate.OrganizationPrincipalsTable.Name).Columns("organization_id", "principal", "position")
	for i, p := range o.Principals {
		ib.Values(o.ID, p, i)
	}
	if _, err := s.exec(ctx, ib); err != nil {
		return mapErr(err, fmt.Sprintf("organization %s principals", o.Name), map[string]any{"organization": o.Name})
	}
	return nil
}

func (s *Session) loadPrincipals(ctx context.Context, o *domain.Organization) error {
	rows, err := s.query(ctx, s.builder().Select("principal").
		From(entsql.Table(migrate.OrganizationPrincipalsTable.Name)).
		Where(entsql.EQ("organization_id", o.ID)).
		OrderBy("position"))
	if err != nil {
		return fmt.Errorf("load principals of %s: %w", o.Name, err)
	}
	principals, err := collect(rows, func(r scanner) (string, error) {
		var p string
		err := r.Scan(&p)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("load principals of %s: %w", o.Name, err)
	}
	o.Principals = principals
	return nil
}
