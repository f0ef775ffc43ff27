package maintainer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// Events applies event schemas additively to their tables, refreshes the
// read views and publishes every version. A converged app owning the
// event is moved back to NEEDS_UPDATE so its mirrored views pick up the
// new shape on the next interval.
type Events struct{ *Deps }

func (m *Events) Name() string { return "events" }

func (m *Events) Maintain(ctx context.Context) error {
	return m.pass(ctx, m.Name(), func(ctx context.Context, s store.Session, log *logrus.Entry) error {
		pending, err := s.Events(ctx, store.EventFilter{Status: store.Not(domain.StatusSuccess)})
		if err != nil || len(pending) == 0 {
			return err
		}
		embedded := true
		contexts, err := s.EventContexts(ctx, store.ContextFilter{Embedded: &embedded})
		if err != nil {
			return err
		}
		atomics, err := s.AtomicParameters(ctx)
		if err != nil {
			return err
		}
		for i, e := range pending {
			l := log.WithFields(logrus.Fields{
				"app_id": string(e.AppID),
				"event":  e.Schema.Name,
				"idx":    i + 1,
				"total":  len(pending),
			})
			l.Info("maintaining event")
			params := e.EffectiveSchema().Parameters
			if err := m.maintainEventTables(ctx, l, e.AppID, e.Schema.Name, params, contexts, atomics); err != nil {
				return err
			}
			if err := m.publish(ctx, l, e); err != nil {
				return err
			}
			if _, err := markSucceeded(ctx, s, l, e, m.now()); err != nil {
				return err
			}
			// The tables changed even if the event did not converge.
			if err := m.invalidateApp(ctx, s, l, e.AppID); err != nil {
				return err
			}
			if err := s.Commit(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Events) invalidateApp(ctx context.Context, s store.Session, log *logrus.Entry, id domain.AppID) error {
	ok, err := s.Invalidate(ctx, store.AppRef(id), m.now())
	if ok {
		log.Info("app needs update")
	}
	return err
}
