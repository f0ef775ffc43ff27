package compiler

import (
	"fmt"

	"github.com/wilhg/metadata/pkg/adapters/warehouse"
	"github.com/wilhg/metadata/pkg/domain"
)

// BadEventsTableSpec is the shared table enrichment failures land in.
func BadEventsTableSpec(project string) warehouse.TableSpec {
	return warehouse.TableSpec{
		Ref: warehouse.TableRef{Project: project, Dataset: MonitoringDataset, Table: BadEventsTable},
		Fields: []warehouse.Field{
			{Name: "load_tstamp", Type: warehouse.TypeTimestamp, Mode: warehouse.ModeRequired},
			{Name: "schema", Type: warehouse.TypeString, Mode: warehouse.ModeNullable},
			{Name: "data", Type: warehouse.TypeString, Mode: warehouse.ModeNullable},
		},
		Partitioning: &warehouse.Partitioning{Field: "load_tstamp"},
	}
}

// BadEventsViewRef addresses the shared bad-events view.
func BadEventsViewRef(project string) warehouse.TableRef {
	return warehouse.TableRef{Project: project, Dataset: MonitoringDataset, Table: BadEventsView}
}

// BadEventsViewQuery parses failed payloads into app, event and error columns.
func BadEventsViewQuery(project string) string {
	schemaKey := "JSON_VALUE(data, '$.failure.messages[0].schemaKey')"
	return fmt.Sprintf(`SELECT
    *,
    SPLIT(schema, '/')[OFFSET(1)] AS error_type,
    (SELECT JSON_VALUE(_parameters, '$.value') FROM UNNEST(JSON_EXTRACT_ARRAY(data, '$.payload.raw.parameters')) AS _parameters WHERE JSON_VALUE(_parameters, '$.name') = "aid") AS app_id,
    IF(STARTS_WITH(SPLIT(%[2]s, '/')[OFFSET(0)], 'iglu:com.algebraai.gametuner'),
        CASE
        WHEN SPLIT(%[2]s, '/')[OFFSET(1)] LIKE '%%payload_data%%' THEN NULL
        WHEN SPLIT(%[2]s, '/')[OFFSET(1)] LIKE '%%_context%%' THEN NULL
        ELSE SPLIT(%[2]s, '/')[OFFSET(1)] END
    , NULL) AS event_name,
    SPLIT(%[2]s, '/')[OFFSET(3)] AS event_schema_version,
    JSON_VALUE(data, '$.payload.raw.timestamp') AS collector_tstamp,
    ARRAY(SELECT JSON_EXTRACT(dataReports, '$.message') FROM UNNEST(JSON_QUERY_ARRAY(data, '$.failure.messages[0].error.dataReports')) AS dataReports) AS error_messages,
    DATE(load_tstamp) AS date_
FROM %[1]s`, quoteRef(warehouse.TableRef{Project: project, Dataset: MonitoringDataset, Table: BadEventsTable}), schemaKey)
}

// ClientBadEventsViewRef is the app-filtered bad-events view in the client project.
func ClientBadEventsViewRef(clientProject string, id domain.AppID) warehouse.TableRef {
	return warehouse.TableRef{Project: clientProject, Dataset: MonitoringDataset, Table: BadEventsView + "_" + string(id)}
}

func ClientBadEventsViewQuery(project string, id domain.AppID) string {
	return fmt.Sprintf("SELECT * FROM %s\nWHERE app_id = '%s'", quoteRef(BadEventsViewRef(project)), id)
}

// PassthroughQuery selects every column of source.
func PassthroughQuery(source warehouse.TableRef) string {
	return "SELECT * FROM " + quoteRef(source)
}

func ExcludedUniqueIDsSpec(project string, id domain.AppID) warehouse.TableSpec {
	return warehouse.TableSpec{
		Ref: warehouse.TableRef{Project: project, Dataset: FixDataset(id), Table: ExcludedUniqueIDsTable},
		Fields: []warehouse.Field{
			{Name: "unique_id", Type: warehouse.TypeString, Mode: warehouse.ModeNullable},
			{Name: "inserted_at", Type: warehouse.TypeTimestamp, Mode: warehouse.ModeNullable, DefaultValueExpression: "CURRENT_TIMESTAMP()"},
			{Name: "reason", Type: warehouse.TypeString, Mode: warehouse.ModeNullable},
		},
	}
}

func GDPRDeleteRequestLogSpec(project string, id domain.AppID) warehouse.TableSpec {
	return warehouse.TableSpec{
		Ref: warehouse.TableRef{Project: project, Dataset: GDPRDataset(id), Table: GDPRDeleteRequestLogTable},
		Fields: []warehouse.Field{
			{Name: "unique_id", Type: warehouse.TypeString, Mode: warehouse.ModeNullable},
			{Name: "deleted_at", Type: warehouse.TypeTimestamp, Mode: warehouse.ModeNullable, DefaultValueExpression: "CURRENT_TIMESTAMP()"},
			{Name: "requested_at", Type: warehouse.TypeTimestamp, Mode: warehouse.ModeNullable},
			{Name: "reason", Type: warehouse.TypeString, Mode: warehouse.ModeNullable},
			{Name: "email", Type: warehouse.TypeString, Mode: warehouse.ModeNullable},
			{Name: "is_email_sent", Type: warehouse.TypeBoolean, Mode: warehouse.ModeNullable, DefaultValueExpression: "FALSE"},
		},
	}
}

func quoteRef(ref warehouse.TableRef) string { return "`" + ref.String() + "`" }
