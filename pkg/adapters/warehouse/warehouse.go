// Package warehouse defines the table store the reconciliation loops drive,
// together with the field model shared by the schema compiler and adapters.
package warehouse

import (
	"context"
	"fmt"
	"time"
)

type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeInteger   FieldType = "INTEGER"
	TypeFloat     FieldType = "FLOAT"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeDate      FieldType = "DATE"
	TypeTimestamp FieldType = "TIMESTAMP"
	TypeRecord    FieldType = "RECORD"
)

type FieldMode string

const (
	ModeNullable FieldMode = "NULLABLE"
	ModeRequired FieldMode = "REQUIRED"
	ModeRepeated FieldMode = "REPEATED"
)

// Field is one column of a table schema. Records carry nested Fields.
type Field struct {
	Name                   string
	Type                   FieldType
	Mode                   FieldMode
	Description            string
	DefaultValueExpression string
	Fields                 []Field
}

func (f Field) mode() FieldMode {
	if f.Mode == "" {
		return ModeNullable
	}
	return f.Mode
}

// TableRef addresses a table or view.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

func (r TableRef) String() string { return fmt.Sprintf("%s.%s.%s", r.Project, r.Dataset, r.Table) }

// Partitioning is day partitioning on a date/timestamp column. A zero
// Expiration keeps partitions forever.
type Partitioning struct {
	Field      string
	Expiration time.Duration
}

// TableSpec describes a table to create.
type TableSpec struct {
	Ref          TableRef
	Fields       []Field
	Partitioning *Partitioning
}

// Table is an existing table and its current schema.
type Table struct {
	Ref    TableRef
	Fields []Field
}

// AccessEntry is a dataset ACL entry. View entries authorize a view in
// another dataset to read this one; the remaining kinds are carried
// through unchanged when the list is rewritten.
type AccessEntry struct {
	Role       string
	EntityType string
	Entity     string
	View       *TableRef
	// Native is the adapter's own entry, reused verbatim on write.
	Native any
}

// GrantsView reports whether entries already authorize view.
func GrantsView(entries []AccessEntry, view TableRef) bool {
	for _, e := range entries {
		if e.View != nil && *e.View == view {
			return true
		}
	}
	return false
}

// TableStore is the warehouse capability the maintainers need.
type TableStore interface {
	// Project is the warehouse's own project, hosting every app dataset.
	Project() string
	// EnsureDataset creates project.name in region unless it exists.
	EnsureDataset(ctx context.Context, project, name, region string) error
	// Table returns nil, nil when the table does not exist.
	Table(ctx context.Context, ref TableRef) (*Table, error)
	CreateTable(ctx context.Context, spec TableSpec) error
	// AlterTableAddFields appends additions to the table schema. Fields
	// already present take the addition's description and records are
	// merged into their existing counterpart.
	AlterTableAddFields(ctx context.Context, ref TableRef, additions []Field) error
	CreateOrReplaceView(ctx context.Context, ref TableRef, query string) error
	ListTables(ctx context.Context, project, dataset string) ([]string, error)
	DatasetAccess(ctx context.Context, project, dataset string) ([]AccessEntry, error)
	SetDatasetAccess(ctx context.Context, project, dataset string, entries []AccessEntry) error
}
