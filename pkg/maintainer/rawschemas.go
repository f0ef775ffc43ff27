package maintainer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// RawSchemas uploads hand-written registry documents verbatim.
type RawSchemas struct{ *Deps }

func (m *RawSchemas) Name() string { return "raw_schemas" }

func (m *RawSchemas) Maintain(ctx context.Context) error {
	return m.pass(ctx, m.Name(), func(ctx context.Context, s store.Session, log *logrus.Entry) error {
		pending, err := s.RawSchemas(ctx, store.Not(domain.StatusSuccess))
		if err != nil {
			return err
		}
		for i, r := range pending {
			l := log.WithFields(logrus.Fields{"path": r.Path, "idx": i + 1, "total": len(pending)})
			l.Info("uploading raw schema")
			if err := m.apply(ctx, l, "upload", r.Path, func(ctx context.Context) error {
				return m.Registry.Upload(ctx, r.Path, r.Content)
			}); err != nil {
				return err
			}
			if err := converge(ctx, s, l, r, m.now()); err != nil {
				return err
			}
		}
		return nil
	})
}
