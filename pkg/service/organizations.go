package service

import (
	"context"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// Organizations manages organizations and their principals.
type Organizations struct{ base }

// Create registers an organization owning warehouseProject.
func (o *Organizations) Create(ctx context.Context, name, warehouseProject string) (*domain.Organization, error) {
	org, err := domain.NewOrganization(name, warehouseProject, o.now())
	if err != nil {
		return nil, err
	}
	if err := o.tx(ctx, func(s store.Session) error { return s.CreateOrganization(ctx, org) }); err != nil {
		return nil, err
	}
	return org, nil
}

func (o *Organizations) Get(ctx context.Context, name string) (*domain.Organization, error) {
	return load(ctx, o.base, func(s store.Session) (*domain.Organization, error) {
		return s.OrganizationByName(ctx, name)
	})
}

// SetPrincipals replaces the principal list. A changed list on a
// converged organization schedules a new IAM binding.
func (o *Organizations) SetPrincipals(ctx context.Context, name string, principals []string) (*domain.Organization, error) {
	var org *domain.Organization
	err := o.tx(ctx, func(s store.Session) error {
		var err error
		if org, err = s.OrganizationByName(ctx, name); err != nil {
			return err
		}
		if !org.SetPrincipals(principals, o.now()) {
			return nil
		}
		return s.SaveOrganization(ctx, org)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}
