package store

import (
	"context"
	"time"

	"github.com/wilhg/metadata/pkg/domain"
)

// Locker exposes best-effort advisory locks. A false result means another
// holder exists; callers decide whether to proceed.
type Locker interface {
	// TryMaintainerLock takes the session-level reconciliation lock. It is
	// released when the session closes.
	TryMaintainerLock(ctx context.Context) (bool, error)
	// TryXactLock takes a lock on key released at the end of the current transaction.
	TryXactLock(ctx context.Context, key string) (bool, error)
}

// StatusWriter records reconciliation outcomes. It only writes status
// columns and never rewrites definitions loaded earlier in the pass.
type StatusWriter interface {
	// Converge marks the entity SUCCESS if its stored revision is still
	// rev. A false result means a mutation committed after the entity was
	// loaded; the row keeps its status and is picked up again next pass.
	Converge(ctx context.Context, ref Ref, rev int64, at time.Time) (bool, error)
	// Invalidate flips one SUCCESS entity to NEEDS_UPDATE and reports
	// whether it did.
	Invalidate(ctx context.Context, ref Ref, at time.Time) (bool, error)
	// InvalidateAll flips every SUCCESS entity of kind to NEEDS_UPDATE and
	// returns how many rows changed.
	InvalidateAll(ctx context.Context, kind Kind, at time.Time) (int64, error)
}

type OrganizationRepository interface {
	CreateOrganization(ctx context.Context, o *domain.Organization) error
	OrganizationByName(ctx context.Context, name string) (*domain.Organization, error)
	Organizations(ctx context.Context, f StatusFilter) ([]*domain.Organization, error)
	// SaveOrganization persists status and the principal list and bumps
	// the revision.
	SaveOrganization(ctx context.Context, o *domain.Organization) error
}

type AppRepository interface {
	CreateApp(ctx context.Context, a *domain.App) error
	App(ctx context.Context, id domain.AppID) (*domain.App, error)
	Apps(ctx context.Context, f StatusFilter) ([]*domain.App, error)
	// SaveApp persists status, datasources and integrations and bumps
	// the revision.
	SaveApp(ctx context.Context, a *domain.App) error
}

type EventRepository interface {
	// CreateEvent persists the event and its schema.
	CreateEvent(ctx context.Context, e *domain.Event) error
	Event(ctx context.Context, appID domain.AppID, name string) (*domain.Event, error)
	Events(ctx context.Context, f EventFilter) ([]*domain.Event, error)
	// SaveEvent persists status, schema metadata, parameter metadata and
	// parameters not yet stored, and bumps the revision.
	SaveEvent(ctx context.Context, e *domain.Event) error
	// LinkedCommonEvents returns the ids of common events app already instantiates.
	LinkedCommonEvents(ctx context.Context, appID domain.AppID) (map[int64]bool, error)
}

type CatalogRepository interface {
	CreateCommonEvent(ctx context.Context, c *domain.CommonEvent) error
	CommonEvent(ctx context.Context, name string) (*domain.CommonEvent, error)
	CommonEvents(ctx context.Context) ([]*domain.CommonEvent, error)
	SaveCommonEvent(ctx context.Context, c *domain.CommonEvent) error

	CreateEventContext(ctx context.Context, c *domain.EventContext) error
	EventContext(ctx context.Context, name string) (*domain.EventContext, error)
	EventContexts(ctx context.Context, f ContextFilter) ([]*domain.EventContext, error)
	SaveEventContext(ctx context.Context, c *domain.EventContext) error

	CreateAtomicParameter(ctx context.Context, a *domain.AtomicParameter) error
	AtomicParameters(ctx context.Context) ([]*domain.AtomicParameter, error)
}

type RawSchemaRepository interface {
	CreateRawSchema(ctx context.Context, r *domain.RawSchema) error
	RawSchema(ctx context.Context, path string) (*domain.RawSchema, error)
	RawSchemas(ctx context.Context, f StatusFilter) ([]*domain.RawSchema, error)
	SaveRawSchema(ctx context.Context, r *domain.RawSchema) error
}
