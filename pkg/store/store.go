// Package store defines the entity repository shared by the mutation path
// and the reconciliation loops. Implementations must provide identical
// semantics across backends.
package store

import (
	"context"
	"time"

	"github.com/wilhg/metadata/pkg/domain"
)

// MaintainerLockID keys the process-wide advisory lock taken by every
// reconciliation pass.
const MaintainerLockID int64 = 10000

// Kind names a reconcilable entity type.
type Kind string

const (
	KindOrganization Kind = "organization"
	KindApp          Kind = "app"
	KindEvent        Kind = "event"
	KindEventContext Kind = "event_context"
	KindRawSchema    Kind = "raw_schema"
)

// Ref identifies one reconcilable entity by its primary key.
type Ref struct {
	Kind Kind
	Key  any
}

// AppRef refers to the app with the given id.
func AppRef(id domain.AppID) Ref { return Ref{Kind: KindApp, Key: string(id)} }

// RefOf returns the reference of a loaded entity. Unknown types yield the
// zero Ref, which every StatusWriter rejects.
func RefOf(e domain.Reconcilable) Ref {
	switch v := e.(type) {
	case *domain.Organization:
		return Ref{Kind: KindOrganization, Key: v.ID}
	case *domain.App:
		return AppRef(v.ID)
	case *domain.Event:
		return Ref{Kind: KindEvent, Key: v.ID}
	case *domain.EventContext:
		return Ref{Kind: KindEventContext, Key: v.ID}
	case *domain.RawSchema:
		return Ref{Kind: KindRawSchema, Key: v.Path}
	}
	return Ref{}
}

// StatusFilter selects entities by lifecycle status. The zero value
// selects everything.
type StatusFilter struct {
	Status domain.Status
	Negate bool
}

// Is selects entities in status s.
func Is(s domain.Status) StatusFilter { return StatusFilter{Status: s} }

// Not selects entities in any status but s.
func Not(s domain.Status) StatusFilter { return StatusFilter{Status: s, Negate: true} }

// EventFilter narrows Events. Empty AppID matches every app.
type EventFilter struct {
	AppID  domain.AppID
	Status StatusFilter
}

// ContextFilter narrows EventContexts. Nil Embedded matches both kinds.
type ContextFilter struct {
	Embedded *bool
	Status   StatusFilter
}

// Store hands out sessions.
type Store interface {
	// Session opens a transactional scope pinned to one connection.
	Session(ctx context.Context) (Session, error)
	Close() error
}

// Session is a transactional scope. Writes become visible on Commit,
// after which the session continues in a fresh transaction. Close rolls
// back anything uncommitted and releases session locks.
type Session interface {
	Locker
	StatusWriter
	OrganizationRepository
	AppRepository
	EventRepository
	CatalogRepository
	RawSchemaRepository

	Commit(ctx context.Context) error
	Close() error
}

// InvalidateRowShapes flips every converged event and app to
// NEEDS_UPDATE after a change to the columns all of them share.
func InvalidateRowShapes(ctx context.Context, s StatusWriter, at time.Time) error {
	for _, kind := range []Kind{KindEvent, KindApp} {
		if _, err := s.InvalidateAll(ctx, kind, at); err != nil {
			return err
		}
	}
	return nil
}

// InSession runs fn in a session and commits when it returns nil.
func InSession(ctx context.Context, st Store, fn func(Session) error) error {
	s, err := st.Session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := fn(s); err != nil {
		return err
	}
	return s.Commit(ctx)
}
