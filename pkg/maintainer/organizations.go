package maintainer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wilhg/metadata/pkg/compiler"
	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// Organizations binds each organization's principals to the client-admin
// role defined in the organization's own project. The binding is
// replaced, not merged.
type Organizations struct{ *Deps }

func (m *Organizations) Name() string { return "organizations" }

func (m *Organizations) Maintain(ctx context.Context) error {
	return m.pass(ctx, m.Name(), func(ctx context.Context, s store.Session, log *logrus.Entry) error {
		pending, err := s.Organizations(ctx, store.Not(domain.StatusSuccess))
		if err != nil {
			return err
		}
		for i, org := range pending {
			role := compiler.ClientAdminRole(org.WarehouseProject)
			l := log.WithFields(logrus.Fields{"organization": org.Name, "idx": i + 1, "total": len(pending)})
			l.WithField("principals", len(org.Principals)).Info("setting client admin members")
			if err := m.apply(ctx, l, "set_role_members", org.WarehouseProject, func(ctx context.Context) error {
				return m.Principals.SetRoleMembers(ctx, org.WarehouseProject, role, org.Principals)
			}); err != nil {
				return err
			}
			if err := converge(ctx, s, l, org, m.now()); err != nil {
				return err
			}
		}
		return nil
	})
}
