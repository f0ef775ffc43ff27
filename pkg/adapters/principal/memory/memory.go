// Package memory is an in-process principal Store.
package memory

import (
	"context"
	"sync"

	"github.com/wilhg/metadata/pkg/adapters/principal"
)

type Store struct {
	mu       sync.Mutex
	bindings map[string]map[string][]string
	calls    int
	err      error
}

var _ principal.Store = (*Store)(nil)

func New() *Store { return &Store{bindings: map[string]map[string][]string{}} }

func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Store) SetRoleMembers(_ context.Context, project, role string, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls++
	if s.bindings[project] == nil {
		s.bindings[project] = map[string][]string{}
	}
	s.bindings[project][role] = append([]string(nil), members...)
	return nil
}

// Members returns the current members of role on project.
func (s *Store) Members(project, role string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bindings[project][role]...)
}

// Calls counts successful SetRoleMembers calls.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
