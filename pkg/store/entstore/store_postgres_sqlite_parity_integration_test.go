//go:build integration

package entstore

import (
	"context"
	"testing"
	"time"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/store"
)

// Both backends must return the same seed catalog and the same ordering
// for status-filtered listings.
func TestParitySQLiteVsPostgres(t *testing.T) {
	ctx := context.Background()
	backends := map[string]*Store{
		"sqlite":   OpenTest(t),
		"postgres": openPostgres(t),
	}

	type snapshot struct {
		atomics  []string
		contexts []string
		pending  []string
	}
	results := map[string]snapshot{}
	for name, st := range backends {
		now := time.Now()
		var snap snapshot
		err := store.InSession(ctx, st, func(s store.Session) error {
			org, _ := domain.NewOrganization("algebra", "client-project", now)
			if err := s.CreateOrganization(ctx, org); err != nil {
				return err
			}
			for _, id := range []domain.AppID{"beta", "alpha", "gamma"} {
				app, _ := domain.NewApp(id, org, "UTC", nil, now)
				if err := s.CreateApp(ctx, app); err != nil {
					return err
				}
			}
			atomics, err := s.AtomicParameters(ctx)
			if err != nil {
				return err
			}
			for _, a := range atomics {
				snap.atomics = append(snap.atomics, a.Name)
			}
			contexts, err := s.EventContexts(ctx, store.ContextFilter{})
			if err != nil {
				return err
			}
			for _, c := range contexts {
				snap.contexts = append(snap.contexts, c.Schema.Name)
			}
			apps, err := s.Apps(ctx, store.Not(domain.StatusSuccess))
			if err != nil {
				return err
			}
			for _, a := range apps {
				snap.pending = append(snap.pending, string(a.ID))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		results[name] = snap
	}

	a, b := results["sqlite"], results["postgres"]
	if len(a.atomics) != len(b.atomics) || len(a.contexts) != len(b.contexts) || len(a.pending) != len(b.pending) {
		t.Fatalf("parity mismatch: sqlite=%+v postgres=%+v", a, b)
	}
	for i := range a.pending {
		if a.pending[i] != b.pending[i] {
			t.Fatalf("ordering mismatch at %d: %s vs %s", i, a.pending[i], b.pending[i])
		}
	}
	for i := range a.atomics {
		if a.atomics[i] != b.atomics[i] {
			t.Fatalf("atomic mismatch at %d: %s vs %s", i, a.atomics[i], b.atomics[i])
		}
	}
}
