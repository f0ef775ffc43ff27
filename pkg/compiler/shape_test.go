package compiler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/metadata/pkg/adapters/warehouse"
	"github.com/wilhg/metadata/pkg/domain"
)

func atomics(t *testing.T) []*domain.AtomicParameter {
	t.Helper()
	var out []*domain.AtomicParameter
	for _, a := range []struct {
		name string
		typ  domain.ParameterType
	}{
		{"app_id", domain.TypeString},
		{"event_tstamp", domain.TypeDatetime},
		{"event_name", domain.TypeString},
		{"platform", domain.TypeString},
		{"event", domain.TypeString},
		{"date_", domain.TypeDate},
		{"geo_latitude", domain.TypeNumber},
	} {
		// date_ is a seeded name the public constructor rejects.
		out = append(out, &domain.AtomicParameter{Name: a.name, Type: a.typ})
	}
	return out
}

func eventContext(t *testing.T, name string, params ...*domain.SchemaParameter) *domain.EventContext {
	t.Helper()
	s, err := domain.NewSchema(domain.ContextVendor, name, params...)
	require.NoError(t, err)
	c, err := domain.NewEventContext(s, true, time.Now())
	require.NoError(t, err)
	return c
}

func TestEventShape(t *testing.T) {
	ev := levelUp(t)
	ctx := eventContext(t, "ctx_event_context", param(t, "session_id", domain.TypeString, 0))
	empty := eventContext(t, "ctx_empty_context")

	fields := EventShape(ev.EffectiveSchema().Parameters, []*domain.EventContext{ctx, empty}, atomics(t))
	require.Len(t, fields, 9)

	byName := map[string]warehouse.Field{}
	for _, f := range fields {
		byName[f.Name] = f
	}
	assert.Equal(t, warehouse.TypeTimestamp, byName["event_tstamp"].Type)
	assert.Equal(t, warehouse.TypeDate, byName["date_"].Type)
	assert.Equal(t, warehouse.TypeFloat, byName["geo_latitude"].Type)

	params := byName[ParamsField]
	require.Equal(t, warehouse.TypeRecord, params.Type)
	require.Len(t, params.Fields, 3)
	rewards := params.Fields[1]
	assert.Equal(t, warehouse.TypeRecord, rewards.Type)
	assert.Equal(t, warehouse.ModeRepeated, rewards.Mode)
	assert.Equal(t, []string{"key", "value"}, []string{rewards.Fields[0].Name, rewards.Fields[1].Name})
	assert.Equal(t, warehouse.TypeFloat, rewards.Fields[1].Type)
	assert.Equal(t, warehouse.TypeTimestamp, params.Fields[2].Type)

	assert.Equal(t, warehouse.TypeRecord, byName["ctx_event_context"].Type)
	_, ok := byName["ctx_empty_context"]
	assert.False(t, ok)
}

func TestEventShapeWithoutParameters(t *testing.T) {
	fields := EventShape(nil, nil, atomics(t))
	assert.Len(t, fields, 7)
	for _, f := range fields {
		assert.NotEqual(t, ParamsField, f.Name)
	}
}

func TestViewAliases(t *testing.T) {
	ev := levelUp(t)
	ctx := eventContext(t, "ctx_event_context", param(t, "session_id", domain.TypeString, 0))
	device := eventContext(t, "ctx_device_context", param(t, "os", domain.TypeString, 0))

	cols := ViewColumns(ev.EffectiveSchema().Parameters, []*domain.EventContext{ctx, device}, atomics(t))
	got := map[string]string{}
	order := []string{}
	for _, c := range cols {
		got[c.Expr] = c.Alias
		order = append(order, c.Alias)
	}

	assert.Equal(t, "app_id", got["`app_id`"])
	assert.Equal(t, "date_", got["`date_`"])
	assert.Equal(t, "level", got["params.`level`"])
	assert.Equal(t, "platform_", got["`platform`"])
	assert.Equal(t, "event_", got["`event`"])
	assert.Equal(t, "event_context_", got["`ctx_event_context`"], "context alias must not collide with the atomic")
	assert.Equal(t, "device_", got["`ctx_device_context`"])

	assert.Equal(t, []string{"app_id", "date_", "event_tstamp", "event_name"}, order[:4])
	seen := map[string]bool{}
	for _, a := range order {
		assert.False(t, seen[a], "duplicate alias %s", a)
		seen[a] = true
	}
}

func TestViewQuery(t *testing.T) {
	src := warehouse.TableRef{Project: "wh", Dataset: "game_load", Table: "level_up"}
	q := ViewQuery(src, levelUp(t).Schema.Parameters, nil, atomics(t))
	assert.True(t, strings.HasPrefix(q, "SELECT\n  `app_id` AS `app_id`,"))
	assert.True(t, strings.HasSuffix(q, "FROM `wh.game_load.level_up`"))
	assert.Contains(t, q, "params.`rewards` AS `rewards`")
}

func TestNaming(t *testing.T) {
	ds := AppDatasets("game")
	require.Len(t, ds, 10)
	assert.Equal(t, DatasetTemplate{Name: "game_backfill"}, ds[7])
	assert.Equal(t, DatasetTemplate{Name: MonitoringDataset, MirrorDataset: true}, ds[1])
	assert.Equal(t, "projects/client/roles/gametuner.clientAdmin", ClientAdminRole("client"))

	tables := EventTables("wh", "game", "level_up")
	require.Len(t, tables, 3)
	assert.Equal(t, LoadPartitionExpiry, tables[0].Partitioning.Expiration)
	assert.Zero(t, tables[1].Partitioning.Expiration)
	assert.Equal(t, "game_backfill", tables[2].Ref.Dataset)

	views := EventViews("wh", "game", "level_up")
	assert.Equal(t, "game_v_raw", views[1].Ref.Dataset)
	assert.Equal(t, "game_raw", views[1].Source.Dataset)
	assert.Equal(t, "SELECT * FROM `wh.gametuner_monitoring.v_enrich_bad_events`\nWHERE app_id = 'game'", ClientBadEventsViewQuery("wh", "game"))
	assert.Contains(t, BadEventsViewQuery("wh"), "LIKE '%payload_data%'")
}
