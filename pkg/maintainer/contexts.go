package maintainer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// EventContexts publishes context documents. Every context that
// converges, new or changed, invalidates the apps holding per-context
// tables and, when it is embedded, every event row shape that carries it.
type EventContexts struct{ *Deps }

func (m *EventContexts) Name() string { return "event_contexts" }

func (m *EventContexts) Maintain(ctx context.Context) error {
	return m.pass(ctx, m.Name(), func(ctx context.Context, s store.Session, log *logrus.Entry) error {
		pending, err := s.EventContexts(ctx, store.ContextFilter{Status: store.Not(domain.StatusSuccess)})
		if err != nil {
			return err
		}
		for i, c := range pending {
			l := log.WithFields(logrus.Fields{"context": c.Schema.Name, "idx": i + 1, "total": len(pending)})
			l.Info("publishing event context")
			if err := m.publish(ctx, l, c); err != nil {
				return err
			}
			converged, err := markSucceeded(ctx, s, l, c, m.now())
			if err != nil {
				return err
			}
			if converged {
				if err := m.invalidateDependents(ctx, s, l, c); err != nil {
					return err
				}
			}
			if err := s.Commit(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *EventContexts) invalidateDependents(ctx context.Context, s store.Session, log *logrus.Entry, c *domain.EventContext) error {
	now := m.now()
	if c.EmbeddedInEvent {
		n, err := s.InvalidateAll(ctx, store.KindEvent, now)
		if err != nil {
			return err
		}
		log.WithField("events", n).Info("invalidated events")
	}
	n, err := s.InvalidateAll(ctx, store.KindApp, now)
	if err != nil {
		return err
	}
	log.WithField("apps", n).Info("invalidated apps")
	return nil
}
