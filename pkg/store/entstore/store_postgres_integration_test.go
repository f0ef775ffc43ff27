//go:build integration

package entstore

import (
	"context"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/store"
)

func openPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	pg, err := tcpostgres.RunContainer(ctx,
		tcpostgres.WithDatabase("metadata"),
		tcpostgres.WithUsername("metadata"),
		tcpostgres.WithPassword("metadata"),
		tcpostgres.WithSQLDriver("pgx"),
	)
	if err != nil {
		t.Skipf("skip: cannot start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	st, err := Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestPostgresMaintainerLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	st := openPostgres(t)

	first, err := st.Session(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := first.TryMaintainerLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first lock ok=%v err=%v", ok, err)
	}
	// the lock outlives transaction boundaries
	if err := first.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	second, err := st.Session(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	ok, err = second.TryMaintainerLock(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("second session acquired a held lock")
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	third, err := st.Session(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer third.Close()
	if ok, err := third.TryMaintainerLock(ctx); err != nil || !ok {
		t.Fatalf("lock after release ok=%v err=%v", ok, err)
	}
}

func TestPostgresEventFlow(t *testing.T) {
	ctx := context.Background()
	st := openPostgres(t)
	now := time.Now()

	err := store.InSession(ctx, st, func(s store.Session) error {
		org, err := domain.NewOrganization("algebra", "client-project", now)
		if err != nil {
			return err
		}
		if err := s.CreateOrganization(ctx, org); err != nil {
			return err
		}
		app, err := domain.NewApp("game", org, "UTC", nil, now)
		if err != nil {
			return err
		}
		if err := s.CreateApp(ctx, app); err != nil {
			return err
		}
		ev, err := domain.NewGameSpecificEvent("game", "level_up", "", "", now)
		if err != nil {
			return err
		}
		p, _ := domain.NewSchemaParameter("level", domain.TypeInteger, 0)
		if err := ev.AddParameters([]*domain.SchemaParameter{p}, now); err != nil {
			return err
		}
		return s.CreateEvent(ctx, ev)
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := st.Session(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ok, err := s.TryXactLock(ctx, "game/level_up")
	if err != nil || !ok {
		t.Fatalf("xact lock ok=%v err=%v", ok, err)
	}
	got, err := s.Event(ctx, "game", "level_up")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Schema.Parameters) != 1 || got.Status != domain.StatusNotReady {
		t.Fatalf("event=%+v", got)
	}
	if err := s.CreateEvent(ctx, mustEvent(t, "game", "level_up")); !errmodel.IsConflict(err) {
		t.Fatalf("duplicate event err=%v want conflict", err)
	}
}
