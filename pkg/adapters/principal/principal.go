// Package principal manages project role bindings granted to organizations.
package principal

import "context"

// Store replaces the member list of one role binding on a project.
type Store interface {
	SetRoleMembers(ctx context.Context, project, role string, members []string) error
}
