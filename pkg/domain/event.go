package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/wilhg/metadata/pkg/errmodel"
)

const (
	// GameSpecificVendorPrefix is prepended to the app id to form an app's event vendor.
	GameSpecificVendorPrefix = "com.algebraai.gametuner.gamespecific."
	// CommonEventVendor namespaces events shared by every app.
	CommonEventVendor = "com.algebraai.gametuner.common"
	// ContextVendor namespaces every event context.
	ContextVendor = "com.algebraai.gametuner.context"
	// EmbeddedContextVendor namespaces contexts merged into every event row.
	EmbeddedContextVendor = "com.algebraai.gametuner.embedded_context"

	contextPrefix      = "ctx_"
	contextSuffix      = "_context"
	customParamPrefix  = "custom_"
	eventDatasourceTag = "events_"
)

// IsContextName reports whether name has the ctx_..._context shape.
func IsContextName(name string) bool {
	return strings.HasPrefix(name, contextPrefix) && strings.HasSuffix(name, contextSuffix)
}

func rejectsEventName(name string) bool {
	return strings.HasPrefix(name, contextPrefix) || strings.HasSuffix(name, contextSuffix)
}

func eventNameError(name string) error {
	return errmodel.Validation("invalid_name",
		fmt.Sprintf("event schema %s must not start with %s or end with %s", name, contextPrefix, contextSuffix),
		map[string]any{"name": name})
}

// SchemaGenerator is implemented by everything that publishes registry
// documents: Event, EventContext and CommonEvent.
type SchemaGenerator interface {
	// EffectiveSchema is the schema documents are generated from.
	EffectiveSchema() *Schema
	// RegistryName is the name segment used in the registry path.
	RegistryName() string
	// Versions enumerates every historical version to publish.
	Versions() []int
}

// AtomicParameter is a global, unversioned field present on every event.
type AtomicParameter struct {
	Name        string
	Type        ParameterType
	Description string
	IsGDPR      bool
	CreatedAt   time.Time
}

// NewAtomicParameter validates name and type. Names follow the same rules
// as schema parameters; seeded atomics predate them and are built directly.
func NewAtomicParameter(name string, typ ParameterType, description string, gdpr bool) (*AtomicParameter, error) {
	if !ValidName(name) {
		return nil, errmodel.Validation("invalid_name", fmt.Sprintf("invalid atomic parameter name %q", name), map[string]any{"name": name})
	}
	if _, err := ParseParameterType(string(typ)); err != nil {
		return nil, err
	}
	return &AtomicParameter{Name: name, Type: typ, Description: description, IsGDPR: gdpr, CreatedAt: time.Now().UTC()}, nil
}

func (a *AtomicParameter) DisplayAlias() string { return TitleName(a.Name) }

// CommonEvent is shared by every app and instantiated per app at a frozen version.
type CommonEvent struct {
	ID     int64
	Schema *Schema
}

func NewCommonEvent(schema *Schema) (*CommonEvent, error) {
	if rejectsEventName(schema.Name) {
		return nil, eventNameError(schema.Name)
	}
	for _, p := range schema.Parameters {
		if strings.HasPrefix(p.Name, customParamPrefix) {
			return nil, customPrefixReserved(schema.Name, p.Name)
		}
	}
	return &CommonEvent{Schema: schema}, nil
}

// AddParameters appends a version batch; the custom_ prefix is reserved
// for parameters added by apps to their instances.
func (c *CommonEvent) AddParameters(params []*SchemaParameter) error {
	for _, p := range params {
		if strings.HasPrefix(p.Name, customParamPrefix) {
			return customPrefixReserved(c.Schema.Name, p.Name)
		}
	}
	return c.Schema.AddParameters(params)
}

func customPrefixReserved(event, param string) error {
	return errmodel.Validation("invalid_name",
		fmt.Sprintf("parameter %s of common event %s must not start with %s", param, event, customParamPrefix),
		map[string]any{"event": event, "parameter": param})
}

// AppSchema is the empty, app-scoped schema an instance starts from.
func (c *CommonEvent) AppSchema(app *App) *Schema {
	return &Schema{
		Vendor:      app.EventVendor(),
		Name:        c.Schema.Name,
		Description: c.Schema.Description,
		CreatedAt:   time.Now().UTC(),
	}
}

func (c *CommonEvent) EffectiveSchema() *Schema { return c.Schema }
func (c *CommonEvent) RegistryName() string     { return c.Schema.Name }
func (c *CommonEvent) Versions() []int          { return c.Schema.Versions() }

// EventContext is a schema attached to events, either embedded in every
// event row or materialized as a standalone table.
type EventContext struct {
	ID              int64
	Schema          *Schema
	EmbeddedInEvent bool
	Lifecycle
}

func NewEventContext(schema *Schema, embedded bool, now time.Time) (*EventContext, error) {
	if !IsContextName(schema.Name) {
		return nil, errmodel.Validation("invalid_name",
			fmt.Sprintf("context schema %s must start with %s and end with %s", schema.Name, contextPrefix, contextSuffix),
			map[string]any{"name": schema.Name})
	}
	return &EventContext{Schema: schema, EmbeddedInEvent: embedded, Lifecycle: NewLifecycle(now)}, nil
}

func (c *EventContext) EffectiveSchema() *Schema { return c.Schema }

// RegistryName drops the ctx_ prefix: ctx_event_context publishes as event_context.
func (c *EventContext) RegistryName() string { return strings.TrimPrefix(c.Schema.Name, contextPrefix) }

func (c *EventContext) Versions() []int { return c.Schema.Versions() }

func (c *EventContext) DisplayAlias() string { return TitleName(c.RegistryName()) }

// CleanedName strips both the ctx_ prefix and the _context suffix.
func (c *EventContext) CleanedName() string {
	return strings.TrimSuffix(strings.TrimPrefix(c.Schema.Name, contextPrefix), contextSuffix)
}

// AddParameters appends a version batch and invalidates a converged context.
func (c *EventContext) AddParameters(params []*SchemaParameter, now time.Time) error {
	if err := c.Schema.AddParameters(params); err != nil {
		return err
	}
	if len(params) > 0 {
		c.Invalidate(now)
	}
	return nil
}

// Event is an app-owned schema. Common-derived events keep the parent and
// the parent version frozen at link time.
type Event struct {
	ID                       int64
	AppID                    AppID
	Schema                   *Schema
	ParentCommonEvent        *CommonEvent
	ParentCommonEventVersion int
	Lifecycle
}

func NewEvent(appID AppID, schema *Schema, now time.Time) (*Event, error) {
	if rejectsEventName(schema.Name) {
		return nil, eventNameError(schema.Name)
	}
	return &Event{AppID: appID, Schema: schema, Lifecycle: NewLifecycle(now)}, nil
}

// NewGameSpecificEvent creates an empty event in the app's vendor namespace.
func NewGameSpecificEvent(appID AppID, name, alias, description string, now time.Time) (*Event, error) {
	schema, err := NewSchema(GameSpecificVendorPrefix+string(appID), name)
	if err != nil {
		return nil, err
	}
	schema.Alias = alias
	schema.Description = description
	return NewEvent(appID, schema, now)
}

// InstantiateCommonEvent links app to common at the common event's current version.
func InstantiateCommonEvent(app *App, common *CommonEvent, now time.Time) (*Event, error) {
	ev, err := NewEvent(app.ID, common.AppSchema(app), now)
	if err != nil {
		return nil, err
	}
	ev.ParentCommonEvent = common
	ev.ParentCommonEventVersion = common.Schema.CurrentVersion()
	return ev, nil
}

func (e *Event) IsCommon() bool { return e.ParentCommonEvent != nil }

// EffectiveSchema merges the parent's parameters up to the frozen version,
// re-tagged as version 0, with the event's own parameters.
func (e *Event) EffectiveSchema() *Schema {
	if !e.IsCommon() {
		return e.Schema
	}
	params := make([]*SchemaParameter, 0, len(e.ParentCommonEvent.Schema.Parameters)+len(e.Schema.Parameters))
	for _, p := range e.ParentCommonEvent.Schema.Parameters {
		if p.IntroducedAtVersion <= e.ParentCommonEventVersion {
			cp := *p
			cp.IntroducedAtVersion = 0
			params = append(params, &cp)
		}
	}
	params = append(params, e.Schema.Parameters...)
	return e.Schema.withParameters(params)
}

func (e *Event) RegistryName() string { return e.Schema.Name }

func (e *Event) Versions() []int { return e.EffectiveSchema().Versions() }

// AddParameters appends a version batch. Common-derived events only accept
// custom_ parameters. A converged event is invalidated.
func (e *Event) AddParameters(params []*SchemaParameter, now time.Time) error {
	if len(params) == 0 {
		return nil
	}
	if e.IsCommon() {
		for _, p := range params {
			if !strings.HasPrefix(p.Name, customParamPrefix) {
				return errmodel.Validation("invalid_name",
					fmt.Sprintf("parameters of common events must start with %s prefix", customParamPrefix),
					map[string]any{"event": e.Schema.Name, "parameter": p.Name})
			}
		}
	}
	if err := e.Schema.AddParameters(params); err != nil {
		return err
	}
	e.Invalidate(now)
	return nil
}

// DatasourceID names the event's freshness datasource.
func (e *Event) DatasourceID() string { return eventDatasourceTag + e.Schema.Name }
