// Package iam binds role members through the Cloud Resource Manager API.
package iam

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	crm "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"

	"github.com/wilhg/metadata/pkg/adapters/principal"
)

type Store struct {
	svc *crm.Service
	log *logrus.Logger
}

var _ principal.Store = (*Store)(nil)

func New(ctx context.Context, log *logrus.Logger, opts ...option.ClientOption) (*Store, error) {
	svc, err := crm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource manager client: %w", err)
	}
	return &Store{svc: svc, log: log}, nil
}

// SetRoleMembers reads the project policy, replaces the members of role
// (adding the binding when missing) and writes the policy back. The
// policy etag guards against concurrent edits.
func (s *Store) SetRoleMembers(ctx context.Context, project, role string, members []string) error {
	policy, err := s.svc.Projects.GetIamPolicy(project, &crm.GetIamPolicyRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get iam policy of %s: %w", project, err)
	}
	ReplaceMembers(policy, role, members)
	if _, err := s.svc.Projects.SetIamPolicy(project, &crm.SetIamPolicyRequest{Policy: policy}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("set iam policy of %s: %w", project, err)
	}
	s.log.WithFields(logrus.Fields{"project": project, "role": role, "members": len(members)}).Info("role members updated")
	return nil
}

// ReplaceMembers sets the members of the first binding of role.
func ReplaceMembers(policy *crm.Policy, role string, members []string) {
	for _, b := range policy.Bindings {
		if b.Role == role {
			b.Members = append([]string(nil), members...)
			return
		}
	}
	policy.Bindings = append(policy.Bindings, &crm.Binding{Role: role, Members: append([]string(nil), members...)})
}
