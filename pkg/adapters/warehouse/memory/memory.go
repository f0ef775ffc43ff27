// Package memory is an in-process TableStore recording every mutating call.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wilhg/metadata/pkg/adapters/warehouse"
)

const (
	OpEnsureDataset = "ensure_dataset"
	OpCreateTable   = "create_table"
	OpAlterTable    = "alter_table"
	OpCreateView    = "create_view"
	OpSetAccess     = "set_access"
)

// Call is one recorded mutation.
type Call struct {
	Op     string
	Target string
}

type table struct {
	fields       []warehouse.Field
	partitioning *warehouse.Partitioning
	view         string
}

type Store struct {
	mu       sync.Mutex
	project  string
	datasets map[string]string
	tables   map[warehouse.TableRef]*table
	access   map[string][]warehouse.AccessEntry
	calls    []Call
	failures map[string]error
	onCall   func(Call)
}

var _ warehouse.TableStore = (*Store)(nil)

func New(project string) *Store {
	return &Store{
		project:  project,
		datasets: map[string]string{},
		tables:   map[warehouse.TableRef]*table{},
		access:   map[string][]warehouse.AccessEntry{},
		failures: map[string]error{},
	}
}

// FailOn makes every subsequent op call return err; nil clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns the recorded calls of op, or all calls when op is empty.
func (s *Store) Calls(op string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// OnCall registers fn to run after every recorded call. fn runs with the
// store locked and must not call back into it.
func (s *Store) OnCall(fn func(Call)) {
	s.mu.Lock()
	s.onCall = fn
	s.mu.Unlock()
}

func (s *Store) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// HasDataset reports whether project.name exists.
func (s *Store) HasDataset(project, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.datasets[project+"."+name]
	return ok
}

// ViewQuery returns the query of a view, "" when ref is not a view.
func (s *Store) ViewQuery(ref warehouse.TableRef) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[ref]; ok {
		return t.view
	}
	return ""
}

// Partitioning returns the partitioning a table was created with.
func (s *Store) Partitioning(ref warehouse.TableRef) *warehouse.Partitioning {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[ref]; ok {
		return t.partitioning
	}
	return nil
}

func (s *Store) record(op, target string) error {
	if err := s.failures[op]; err != nil {
		return err
	}
	c := Call{Op: op, Target: target}
	s.calls = append(s.calls, c)
	if s.onCall != nil {
		s.onCall(c)
	}
	return nil
}

func (s *Store) requireDataset(project, dataset string) error {
	if _, ok := s.datasets[project+"."+dataset]; !ok {
		return fmt.Errorf("dataset %s.%s not found", project, dataset)
	}
	return nil
}

func (s *Store) Project() string { return s.project }

func (s *Store) EnsureDataset(_ context.Context, project, name, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := project + "." + name
	if err := s.record(OpEnsureDataset, key); err != nil {
		return err
	}
	if _, ok := s.datasets[key]; !ok {
		s.datasets[key] = region
	}
	return nil
}

func (s *Store) Table(_ context.Context, ref warehouse.TableRef) (*warehouse.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[ref]
	if !ok {
		return nil, nil
	}
	return &warehouse.Table{Ref: ref, Fields: append([]warehouse.Field(nil), t.fields...)}, nil
}

func (s *Store) CreateTable(_ context.Context, spec warehouse.TableSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpCreateTable, spec.Ref.String()); err != nil {
		return err
	}
	if err := s.requireDataset(spec.Ref.Project, spec.Ref.Dataset); err != nil {
		return err
	}
	if _, ok := s.tables[spec.Ref]; ok {
		return fmt.Errorf("table %s already exists", spec.Ref)
	}
	s.tables[spec.Ref] = &table{fields: spec.Fields, partitioning: spec.Partitioning}
	return nil
}

func (s *Store) AlterTableAddFields(_ context.Context, ref warehouse.TableRef, additions []warehouse.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpAlterTable, ref.String()); err != nil {
		return err
	}
	t, ok := s.tables[ref]
	if !ok || t.view != "" {
		return fmt.Errorf("table %s not found", ref)
	}
	t.fields = warehouse.Merge(t.fields, additions)
	return nil
}

func (s *Store) CreateOrReplaceView(_ context.Context, ref warehouse.TableRef, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpCreateView, ref.String()); err != nil {
		return err
	}
	if err := s.requireDataset(ref.Project, ref.Dataset); err != nil {
		return err
	}
	s.tables[ref] = &table{view: query}
	return nil
}

func (s *Store) ListTables(_ context.Context, project, dataset string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDataset(project, dataset); err != nil {
		return nil, err
	}
	var out []string
	for ref := range s.tables {
		if ref.Project == project && ref.Dataset == dataset {
			out = append(out, ref.Table)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DatasetAccess(_ context.Context, project, dataset string) ([]warehouse.AccessEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDataset(project, dataset); err != nil {
		return nil, err
	}
	return append([]warehouse.AccessEntry(nil), s.access[project+"."+dataset]...), nil
}

func (s *Store) SetDatasetAccess(_ context.Context, project, dataset string, entries []warehouse.AccessEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpSetAccess, project+"."+dataset); err != nil {
		return err
	}
	if err := s.requireDataset(project, dataset); err != nil {
		return err
	}
	s.access[project+"."+dataset] = append([]warehouse.AccessEntry(nil), entries...)
	return nil
}
