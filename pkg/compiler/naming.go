package compiler

import (
	"fmt"
	"time"

	"github.com/wilhg/metadata/pkg/adapters/warehouse"
	"github.com/wilhg/metadata/pkg/domain"
)

const (
	CommonDataset     = "gametuner_common"
	MonitoringDataset = "gametuner_monitoring"

	BadEventsTable            = "enrich_bad_events"
	BadEventsView             = "v_enrich_bad_events"
	ExcludedUniqueIDsTable    = "excluded_unique_ids"
	GDPRDeleteRequestLogTable = "gdpr_delete_request_log"

	// PartitionField is the day-partitioning column of every event table.
	PartitionField = "date_"
	// LoadPartitionExpiry bounds how long load partitions are kept.
	LoadPartitionExpiry = 30 * 24 * time.Hour

	clientAdminRole = "gametuner.clientAdmin"
)

// DatasetTemplate is one dataset every app owns. Mirrored datasets are
// recreated in the organization's project; mirrored tables are exposed
// there as authorized passthrough views.
type DatasetTemplate struct {
	Name          string
	MirrorDataset bool
	MirrorTables  bool
}

func LoadDataset(id domain.AppID) string     { return string(id) + "_load" }
func RawDataset(id domain.AppID) string      { return string(id) + "_raw" }
func BackfillDataset(id domain.AppID) string { return string(id) + "_backfill" }
func LoadViewDataset(id domain.AppID) string { return string(id) + "_v_load" }
func RawViewDataset(id domain.AppID) string  { return string(id) + "_v_raw" }
func GDPRDataset(id domain.AppID) string     { return string(id) + "_gdpr" }
func FixDataset(id domain.AppID) string      { return string(id) + "_fix" }

// AppDatasets lists the mirrored dataset templates in creation order.
// The fix dataset is not mirrored and is created separately.
func AppDatasets(id domain.AppID) []DatasetTemplate {
	return []DatasetTemplate{
		{CommonDataset, true, true},
		{MonitoringDataset, true, false},
		{LoadDataset(id), true, true},
		{RawDataset(id), true, true},
		{LoadViewDataset(id), true, true},
		{RawViewDataset(id), true, true},
		{string(id) + "_external", true, true},
		{BackfillDataset(id), false, false},
		{GDPRDataset(id), true, true},
		{string(id) + "_main", true, true},
	}
}

// ClientAdminRole is the custom role granted to an organization's principals.
func ClientAdminRole(project string) string {
	return fmt.Sprintf("projects/%s/roles/%s", project, clientAdminRole)
}

// EventTable is one physical table an event or context is stored in.
type EventTable struct {
	Ref          warehouse.TableRef
	Partitioning *warehouse.Partitioning
}

// EventTables returns the load, raw and backfill tables of name.
func EventTables(project string, id domain.AppID, name string) []EventTable {
	return []EventTable{
		{
			Ref:          warehouse.TableRef{Project: project, Dataset: LoadDataset(id), Table: name},
			Partitioning: &warehouse.Partitioning{Field: PartitionField, Expiration: LoadPartitionExpiry},
		},
		{
			Ref:          warehouse.TableRef{Project: project, Dataset: RawDataset(id), Table: name},
			Partitioning: &warehouse.Partitioning{Field: PartitionField},
		},
		{
			Ref:          warehouse.TableRef{Project: project, Dataset: BackfillDataset(id), Table: name},
			Partitioning: &warehouse.Partitioning{Field: PartitionField},
		},
	}
}

// EventView is a read view projecting an event table.
type EventView struct {
	Ref    warehouse.TableRef
	Source warehouse.TableRef
}

// EventViews returns the v_load and v_raw views of name.
func EventViews(project string, id domain.AppID, name string) []EventView {
	return []EventView{
		{
			Ref:    warehouse.TableRef{Project: project, Dataset: LoadViewDataset(id), Table: name},
			Source: warehouse.TableRef{Project: project, Dataset: LoadDataset(id), Table: name},
		},
		{
			Ref:    warehouse.TableRef{Project: project, Dataset: RawViewDataset(id), Table: name},
			Source: warehouse.TableRef{Project: project, Dataset: RawDataset(id), Table: name},
		},
	}
}
