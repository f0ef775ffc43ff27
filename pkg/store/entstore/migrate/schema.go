// Package migrate declares the relational schema of the metadata store and
// the rows every fresh database is seeded with.
package migrate

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const textSize = 2147483647

var (
	// OrganizationsColumns holds the columns for the "organizations" table.
	// Every reconcilable table carries a revision bumped by each save.
	OrganizationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "name", Type: field.TypeString, Unique: true},
		{Name: "warehouse_project", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "status_updated_at", Type: field.TypeTime},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "revision", Type: field.TypeInt64, Default: 0},
	}
	OrganizationsTable = &schema.Table{
		Name:       "organizations",
		Columns:    OrganizationsColumns,
		PrimaryKey: []*schema.Column{OrganizationsColumns[0]},
	}

	OrganizationPrincipalsColumns = []*schema.Column{
		{Name: "organization_id", Type: field.TypeInt64},
		{Name: "principal", Type: field.TypeString},
		{Name: "position", Type: field.TypeInt},
	}
	OrganizationPrincipalsTable = &schema.Table{
		Name:       "organization_principals",
		Columns:    OrganizationPrincipalsColumns,
		PrimaryKey: []*schema.Column{OrganizationPrincipalsColumns[0], OrganizationPrincipalsColumns[1]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "organization_principals_organization",
				Columns:    []*schema.Column{OrganizationPrincipalsColumns[0]},
				RefColumns: []*schema.Column{OrganizationsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}

	AppsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "organization_id", Type: field.TypeInt64},
		{Name: "timezone", Type: field.TypeString},
		{Name: "api_key", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "status_updated_at", Type: field.TypeTime},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "revision", Type: field.TypeInt64, Default: 0},
	}
	AppsTable = &schema.Table{
		Name:       "apps",
		Columns:    AppsColumns,
		PrimaryKey: []*schema.Column{AppsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "apps_organization",
				Columns:    []*schema.Column{AppsColumns[1]},
				RefColumns: []*schema.Column{OrganizationsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
	}

	// DatasourcesColumns stores dates as YYYY-MM-DD text on every backend.
	DatasourcesColumns = []*schema.Column{
		{Name: "app_id", Type: field.TypeString},
		{Name: "id", Type: field.TypeString},
		{Name: "has_data_from", Type: field.TypeString},
		{Name: "has_data_up_to", Type: field.TypeString, Nullable: true},
	}
	DatasourcesTable = &schema.Table{
		Name:       "datasources",
		Columns:    DatasourcesColumns,
		PrimaryKey: []*schema.Column{DatasourcesColumns[0], DatasourcesColumns[1]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "datasources_app",
				Columns:    []*schema.Column{DatasourcesColumns[0]},
				RefColumns: []*schema.Column{AppsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}

	AppIntegrationsColumns = []*schema.Column{
		{Name: "app_id", Type: field.TypeString},
		{Name: "kind", Type: field.TypeString},
		{Name: "payload", Type: field.TypeString, Size: textSize},
	}
	AppIntegrationsTable = &schema.Table{
		Name:       "app_integrations",
		Columns:    AppIntegrationsColumns,
		PrimaryKey: []*schema.Column{AppIntegrationsColumns[0], AppIntegrationsColumns[1]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "app_integrations_app",
				Columns:    []*schema.Column{AppIntegrationsColumns[0]},
				RefColumns: []*schema.Column{AppsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}

	SchemasColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "vendor", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "alias", Type: field.TypeString, Default: ""},
		{Name: "description", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
	}
	SchemasTable = &schema.Table{
		Name:       "schemas",
		Columns:    SchemasColumns,
		PrimaryKey: []*schema.Column{SchemasColumns[0]},
		Indexes: []*schema.Index{
			{Name: "schemas_vendor_name", Columns: []*schema.Column{SchemasColumns[1], SchemasColumns[2]}},
		},
	}

	SchemaParametersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "schema_id", Type: field.TypeInt64},
		{Name: "name", Type: field.TypeString},
		{Name: "type", Type: field.TypeString},
		{Name: "introduced_at_version", Type: field.TypeInt},
		{Name: "alias", Type: field.TypeString, Default: ""},
		{Name: "description", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "is_gdpr", Type: field.TypeBool, Default: false},
		{Name: "is_gdpr_updated_at", Type: field.TypeTime},
		{Name: "created_at", Type: field.TypeTime},
	}
	SchemaParametersTable = &schema.Table{
		Name:       "schema_parameters",
		Columns:    SchemaParametersColumns,
		PrimaryKey: []*schema.Column{SchemaParametersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "schema_parameters_schema",
				Columns:    []*schema.Column{SchemaParametersColumns[1]},
				RefColumns: []*schema.Column{SchemasColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "schema_parameters_schema_id_name", Unique: true, Columns: []*schema.Column{SchemaParametersColumns[1], SchemaParametersColumns[2]}},
		},
	}

	CommonEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "name", Type: field.TypeString, Unique: true},
		{Name: "schema_id", Type: field.TypeInt64, Unique: true},
	}
	CommonEventsTable = &schema.Table{
		Name:       "common_events",
		Columns:    CommonEventsColumns,
		PrimaryKey: []*schema.Column{CommonEventsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "common_events_schema",
				Columns:    []*schema.Column{CommonEventsColumns[2]},
				RefColumns: []*schema.Column{SchemasColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
	}

	EventContextsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "name", Type: field.TypeString, Unique: true},
		{Name: "schema_id", Type: field.TypeInt64, Unique: true},
		{Name: "embedded_in_event", Type: field.TypeBool, Default: false},
		{Name: "status", Type: field.TypeString},
		{Name: "status_updated_at", Type: field.TypeTime},
		{Name: "revision", Type: field.TypeInt64, Default: 0},
	}
	EventContextsTable = &schema.Table{
		Name:       "event_contexts",
		Columns:    EventContextsColumns,
		PrimaryKey: []*schema.Column{EventContextsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "event_contexts_schema",
				Columns:    []*schema.Column{EventContextsColumns[2]},
				RefColumns: []*schema.Column{SchemasColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
	}

	EventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "app_id", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "schema_id", Type: field.TypeInt64, Unique: true},
		{Name: "parent_common_event_id", Type: field.TypeInt64, Nullable: true},
		{Name: "parent_common_event_version", Type: field.TypeInt, Default: 0},
		{Name: "status", Type: field.TypeString},
		{Name: "status_updated_at", Type: field.TypeTime},
		{Name: "revision", Type: field.TypeInt64, Default: 0},
	}
	EventsTable = &schema.Table{
		Name:       "events",
		Columns:    EventsColumns,
		PrimaryKey: []*schema.Column{EventsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "events_app",
				Columns:    []*schema.Column{EventsColumns[1]},
				RefColumns: []*schema.Column{AppsColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "events_schema",
				Columns:    []*schema.Column{EventsColumns[3]},
				RefColumns: []*schema.Column{SchemasColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "events_parent_common_event",
				Columns:    []*schema.Column{EventsColumns[4]},
				RefColumns: []*schema.Column{CommonEventsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "events_app_id_name", Unique: true, Columns: []*schema.Column{EventsColumns[1], EventsColumns[2]}},
			{Name: "events_status", Columns: []*schema.Column{EventsColumns[6]}},
		},
	}

	AtomicParametersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "name", Type: field.TypeString, Unique: true},
		{Name: "type", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "is_gdpr", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeTime},
	}
	AtomicParametersTable = &schema.Table{
		Name:       "atomic_parameters",
		Columns:    AtomicParametersColumns,
		PrimaryKey: []*schema.Column{AtomicParametersColumns[0]},
	}

	RawSchemasColumns = []*schema.Column{
		{Name: "path", Type: field.TypeString},
		{Name: "content", Type: field.TypeString, Size: textSize},
		{Name: "status", Type: field.TypeString},
		{Name: "status_updated_at", Type: field.TypeTime},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "revision", Type: field.TypeInt64, Default: 0},
	}
	RawSchemasTable = &schema.Table{
		Name:       "raw_schemas",
		Columns:    RawSchemasColumns,
		PrimaryKey: []*schema.Column{RawSchemasColumns[0]},
	}

	// Tables holds all the tables in the schema, parents first.
	Tables = []*schema.Table{
		OrganizationsTable,
		OrganizationPrincipalsTable,
		AppsTable,
		DatasourcesTable,
		AppIntegrationsTable,
		SchemasTable,
		SchemaParametersTable,
		CommonEventsTable,
		EventContextsTable,
		EventsTable,
		AtomicParametersTable,
		RawSchemasTable,
	}
)

func init() {
	OrganizationPrincipalsTable.ForeignKeys[0].RefTable = OrganizationsTable
	AppsTable.ForeignKeys[0].RefTable = OrganizationsTable
	DatasourcesTable.ForeignKeys[0].RefTable = AppsTable
	AppIntegrationsTable.ForeignKeys[0].RefTable = AppsTable
	SchemaParametersTable.ForeignKeys[0].RefTable = SchemasTable
	CommonEventsTable.ForeignKeys[0].RefTable = SchemasTable
	EventContextsTable.ForeignKeys[0].RefTable = SchemasTable
	EventsTable.ForeignKeys[0].RefTable = AppsTable
	EventsTable.ForeignKeys[1].RefTable = SchemasTable
	EventsTable.ForeignKeys[2].RefTable = CommonEventsTable
}
