package migrate

import (
	"time"

	"github.com/wilhg/metadata/pkg/domain"
)

type atomicSeed struct {
	name string
	typ  domain.ParameterType
	gdpr bool
}

// atomicSeeds is the tracker envelope every event carries, in column order.
var atomicSeeds = []atomicSeed{
	{"app_id", domain.TypeString, false},
	{"platform", domain.TypeString, false},
	{"enricher_tstamp", domain.TypeDatetime, false},
	{"collector_tstamp", domain.TypeDatetime, false},
	{"dvce_created_tstamp", domain.TypeDatetime, false},
	{"event", domain.TypeString, false},
	{"event_id", domain.TypeString, false},
	{"name_tracker", domain.TypeString, false},
	{"v_tracker", domain.TypeString, false},
	{"v_collector", domain.TypeString, false},
	{"v_etl", domain.TypeString, false},
	{"user_id", domain.TypeString, false},
	{"installation_id", domain.TypeString, false},
	{"unique_id", domain.TypeString, false},
	{"user_ipaddress", domain.TypeString, true},
	{"network_userid", domain.TypeString, false},
	{"geo_country", domain.TypeString, false},
	{"geo_country_name", domain.TypeString, false},
	{"geo_region", domain.TypeString, false},
	{"geo_city", domain.TypeString, false},
	{"geo_zipcode", domain.TypeString, false},
	{"geo_latitude", domain.TypeNumber, false},
	{"geo_longitude", domain.TypeNumber, false},
	{"geo_region_name", domain.TypeString, false},
	{"mkt_medium", domain.TypeString, false},
	{"mkt_source", domain.TypeString, false},
	{"mkt_term", domain.TypeString, false},
	{"mkt_content", domain.TypeString, false},
	{"mkt_campaign", domain.TypeString, false},
	{"useragent", domain.TypeString, false},
	{"geo_timezone", domain.TypeString, false},
	{"etl_tags", domain.TypeString, false},
	{"dvce_sent_tstamp", domain.TypeDatetime, false},
	{"derived_tstamp", domain.TypeDatetime, false},
	{"event_vendor", domain.TypeString, false},
	{"event_name", domain.TypeString, false},
	{"event_format", domain.TypeString, false},
	{"event_version", domain.TypeString, false},
	{"event_fingerprint", domain.TypeString, false},
	{"true_tstamp", domain.TypeDatetime, false},
	{"load_tstamp", domain.TypeDatetime, false},
	{"event_tstamp", domain.TypeDatetime, false},
	{"event_quality", domain.TypeInteger, false},
	{"sandbox_mode", domain.TypeBoolean, false},
	{"backfill_mode", domain.TypeBoolean, false},
	{"date_", domain.TypeDate, false},
}

// AtomicParameters returns the seeded atomic parameters.
func AtomicParameters(now time.Time) []*domain.AtomicParameter {
	out := make([]*domain.AtomicParameter, 0, len(atomicSeeds))
	for _, s := range atomicSeeds {
		out = append(out, &domain.AtomicParameter{Name: s.name, Type: s.typ, IsGDPR: s.gdpr, CreatedAt: now.UTC()})
	}
	return out
}

type contextSeed struct {
	vendor      string
	name        string
	description string
	embedded    bool
	params      []atomicSeed
}

var contextSeeds = []contextSeed{
	{
		vendor:      domain.ContextVendor,
		name:        "ctx_event_context",
		description: "Event context that is added to every triggered event",
		params: []atomicSeed{
			{"event_index", domain.TypeInteger, false},
			{"previous_event", domain.TypeString, false},
			{"sandbox_mode", domain.TypeBoolean, false},
			{"event_bundle_id", domain.TypeInteger, false},
			{"is_online", domain.TypeBoolean, false},
		},
	},
	{
		vendor:      domain.EmbeddedContextVendor,
		name:        "ctx_device_context",
		description: "Device context",
		embedded:    true,
		params: []atomicSeed{
			{"device_category", domain.TypeString, false},
			{"device_manufacturer", domain.TypeString, false},
			{"model", domain.TypeString, false},
			{"os_version", domain.TypeString, false},
			{"cpu_type", domain.TypeString, false},
			{"gpu", domain.TypeString, false},
			{"ram_size", domain.TypeInteger, false},
			{"screen_resolution", domain.TypeString, false},
			{"device_language", domain.TypeString, false},
			{"device_timezone", domain.TypeString, false},
			{"source", domain.TypeString, false},
			{"medium", domain.TypeString, false},
			{"campaign", domain.TypeString, false},
			{"build_version", domain.TypeString, false},
			{"device_id", domain.TypeString, false},
			{"advertising_id", domain.TypeString, true},
			{"is_hacked", domain.TypeString, false},
			{"idfa", domain.TypeString, true},
			{"idfv", domain.TypeString, false},
			{"store", domain.TypeString, false},
		},
	},
	{
		vendor:      domain.EmbeddedContextVendor,
		name:        "ctx_session_context",
		description: "Event context that is added to every triggered event",
		embedded:    true,
		params: []atomicSeed{
			{"session_id", domain.TypeString, false},
			{"session_index", domain.TypeInteger, false},
			{"session_time", domain.TypeNumber, false},
		},
	},
}

// EventContexts returns the seeded contexts, all NOT_READY.
func EventContexts(now time.Time) ([]*domain.EventContext, error) {
	out := make([]*domain.EventContext, 0, len(contextSeeds))
	for _, s := range contextSeeds {
		params := make([]*domain.SchemaParameter, 0, len(s.params))
		for _, p := range s.params {
			sp, err := domain.NewSchemaParameter(p.name, p.typ, 0)
			if err != nil {
				return nil, err
			}
			sp.IsGDPR = p.gdpr
			params = append(params, sp)
		}
		sch, err := domain.NewSchema(s.vendor, s.name, params...)
		if err != nil {
			return nil, err
		}
		sch.Description = s.description
		sch.CreatedAt = now.UTC()
		c, err := domain.NewEventContext(sch, s.embedded, now)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
